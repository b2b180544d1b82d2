package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-curator/internal/jobs"
	"github.com/spigell/job-curator/internal/utils"
)

const maxRawInRecord = 200

// ParsedRecord is either a decoded job object or a structured decode error.
type ParsedRecord struct {
	Job   map[string]any `json:"job,omitempty"`
	Error string         `json:"error,omitempty"`
	Raw   string         `json:"raw,omitempty"`

	// element is set for records decoded from an array element, including failed ones.
	element bool
}

func (r ParsedRecord) IsError() bool {
	return r.Error != ""
}

func errorRecord(raw string, format string, args ...any) ParsedRecord {
	return ParsedRecord{
		Error: fmt.Sprintf(format, args...),
		Raw:   utils.TruncateForLog(raw, maxRawInRecord),
	}
}

// ParseToolOutput decodes a tool output that must be a JSON array. Elements
// may be objects or JSON strings holding an encoded object. Elements that fail
// to decode become error records. Output that is not an array at all yields a
// single error record that is not an element.
func ParseToolOutput(raw string) []ParsedRecord {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &elements); err != nil {
		return []ParsedRecord{errorRecord(raw, "tool output is not a JSON array: %v", err)}
	}

	records := make([]ParsedRecord, 0, len(elements))
	for i, element := range elements {
		record := decodeElement(i, element)
		record.element = true
		records = append(records, record)
	}
	return records
}

func decodeElement(index int, element json.RawMessage) ParsedRecord {
	payload := bytes.TrimSpace(element)

	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return errorRecord(string(payload), "element %d: decode string: %v", index, err)
		}
		payload = []byte(strings.TrimSpace(inner))
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return errorRecord(string(payload), "element %d: decode object: %v", index, err)
	}
	if obj == nil {
		return errorRecord(string(payload), "element %d: null element", index)
	}
	return ParsedRecord{Job: obj}
}

// countElements returns how many records came from array elements, whether
// or not the element decoded.
func countElements(records []ParsedRecord) int {
	n := 0
	for _, r := range records {
		if r.element {
			n++
		}
	}
	return n
}

// countJobs returns how many records carry a decoded object.
func countJobs(records []ParsedRecord) int {
	n := 0
	for _, r := range records {
		if !r.IsError() {
			n++
		}
	}
	return n
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJob turns a parsed record into a validated job.
func DecodeJob(record ParsedRecord) (jobs.Job, error) {
	var job jobs.Job
	if record.IsError() {
		return job, fmt.Errorf("record is an error: %s", record.Error)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &job,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return job, err
	}
	if err := decoder.Decode(record.Job); err != nil {
		return job, fmt.Errorf("decode job: %w", err)
	}

	job.JobURL = strings.TrimSpace(job.JobURL)
	if err := validate.Struct(job); err != nil {
		return job, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}
