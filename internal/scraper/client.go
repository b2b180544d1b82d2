// Package scraper talks to the job scraper tool gateway: it serves the system
// prompt for the orchestrating model and executes the get_jobs tool.
package scraper

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/utils"
)

const (
	contentType     = "application/json"
	acceptEncoding  = "gzip"
	userAgent       = "spigell/job-curator"
	defaultTimeout  = 5 * time.Minute
	maxErrorPreview = 300

	SystemPromptName = "system_prompt"
)

// Client is an HTTP client for the tool gateway.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scraper url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse scraper url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		logger:     logger,
	}, nil
}

type contentResponse struct {
	Content json.RawMessage `json:"content"`
	Error   string          `json:"error,omitempty"`
}

// Prompt fetches a named prompt from the gateway.
func (c *Client) Prompt(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("prompts", name), nil)
	if err != nil {
		return "", err
	}

	content, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("get prompt %q: %w", name, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("get prompt %q: empty content", name)
	}
	return content, nil
}

// SystemPrompt returns the gateway's system prompt for the orchestrating model.
func (c *Client) SystemPrompt(ctx context.Context) (string, error) {
	return c.Prompt(ctx, SystemPromptName)
}

// Tools lists the tools the gateway exposes.
func (c *Client) Tools() []ai.ToolSpec {
	return []ai.ToolSpec{GetJobsTool}
}

// Call executes a tool and returns its raw text output.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal %s arguments: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("tools", name), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	started := time.Now()
	content, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("call tool %q: %w", name, err)
	}

	c.logger.Debug("tool call finished",
		zap.String("tool", name),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("output_length", len(content)),
	)
	return content, nil
}

func (c *Client) endpoint(kind, name string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, kind, url.PathEscape(name))
}

func (c *Client) do(req *http.Request) (string, error) {
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	var body contentResponse
	decodeErr := json.Unmarshal(data, &body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && body.Error != "" {
			return "", fmt.Errorf("bad status: %s: %s", resp.Status, body.Error)
		}
		return "", fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), maxErrorPreview))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}

	return contentText(body.Content), nil
}

// contentText unwraps a JSON string; any other JSON value is returned as its raw text.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", acceptEncoding)
}
