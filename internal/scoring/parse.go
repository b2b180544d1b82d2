package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/job-curator/internal/utils"
)

var (
	errMissingScore   = errors.New("score field is missing")
	errMissingContent = errors.New("content field is missing")
)

// ParseScore extracts the score and explanation from a model reply. The reply
// must hold a JSON object with an integer "score" in 0..100 and a string "content".
func ParseScore(raw string) (int, string, error) {
	cleaned := extractJSON(utils.CollapseWhitespace(raw))
	if cleaned == "" {
		return 0, "", errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return 0, "", fmt.Errorf("parse score response: %w", err)
	}

	rawScore, ok := data["score"]
	if !ok || rawScore == nil {
		return 0, "", errMissingScore
	}
	score, err := coerceInt(rawScore)
	if err != nil {
		return 0, "", err
	}
	if score < 0 || score > 100 {
		return 0, "", fmt.Errorf("score %d is outside 0..100", score)
	}

	content, ok := data["content"].(string)
	if !ok {
		return 0, "", errMissingContent
	}

	return score, content, nil
}

func coerceInt(v any) (int, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(val.String())
		if err != nil {
			return 0, fmt.Errorf("score %q is not an integer", val.String())
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("score %q is not an integer", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("score has unsupported type %T", v)
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	// tolerate prose around the object
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}
