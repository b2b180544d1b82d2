package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-curator/internal/ai"
	"github.com/spigell/job-curator/internal/logger"
	"github.com/spigell/job-curator/internal/utils"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxRetries   = 3
	defaultMaxLogLength = 200
	defaultTemperature  = 0.3

	// quota errors that ask to wait longer than this are returned immediately
	maxQuotaDelay     = 30 * time.Second
	defaultQuotaDelay = 5 * time.Second
	serverErrorDelay  = 2 * time.Second

	providerName = "gemini"
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configure a Generator. Zero values fall back to defaults.
type Options struct {
	APIKey       string
	Model        string
	MaxRetries   int
	MaxLogLength int
	Temperature  float32
	// Timeout bounds every single API call. Zero disables it.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Generator serves the chat and text capabilities on top of the Gemini API.
type Generator struct {
	models       modelsAPI
	model        string
	maxRetries   int
	maxLogLength int
	temperature  float32
	timeout      time.Duration
	logger       *zap.Logger
	wait         func(context.Context, time.Duration) error
}

var _ ai.Model = (*Generator)(nil)

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts), nil
}

func newGenerator(models modelsAPI, opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxLogLength := opts.MaxLogLength
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	log := logger.WithCommonFields(logger.Component(opts.Logger, "gemini"), providerName, model)

	return &Generator{
		models:       models,
		model:        model,
		maxRetries:   maxRetries,
		maxLogLength: maxLogLength,
		temperature:  temperature,
		timeout:      opts.Timeout,
		logger:       log,
		wait:         utils.WaitFor,
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// GenerateContent sends the prompt to Gemini and returns the joined textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLength)),
	)

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return "", err
	}

	msg := messageFromResponse(resp)
	output := strings.TrimSpace(msg.Content)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLength)),
	)

	return output, nil
}

// Chat sends the conversation with the system instruction and tool declarations.
// The reply is either text or one or more tool calls.
func (g *Generator) Chat(ctx context.Context, system string, history []ai.Message, tools []ai.ToolSpec) (ai.Message, error) {
	if g == nil || g.models == nil {
		return ai.Message{}, errors.New("gemini generator is not initialized")
	}
	if len(history) == 0 {
		return ai.Message{}, errors.New("chat history must not be empty")
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(tools)}}
	}

	contents := toContents(history)
	g.logger.Debug("gemini chat request",
		zap.Int("messages", len(contents)),
		zap.Int("tools", len(tools)),
	)

	resp, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return ai.Message{}, err
	}

	msg := messageFromResponse(resp)
	if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
		return ai.Message{}, errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini chat response",
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.String("response_preview", utils.TruncateForLog(msg.Content, g.maxLogLength)),
	)

	return msg, nil
}

func (g *Generator) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.call(ctx, contents, cfg)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := g.wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("generate content: %w", lastErr)
}

func (g *Generator) call(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.models.GenerateContent(ctx, g.model, contents, cfg)
}

// retryDelay decides whether err is transient and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		delay := defaultQuotaDelay
		if parsed, ok := parseRetryAfter(apiErr.Message); ok {
			delay = parsed
		}
		if delay > maxQuotaDelay {
			return 0, false
		}
		return delay, true
	case apiErr.Code >= http.StatusInternalServerError:
		return time.Duration(attempt) * serverErrorDelay, true
	default:
		return 0, false
	}
}

func parseRetryAfter(message string) (time.Duration, bool) {
	match := retryAfterPattern.FindStringSubmatch(message)
	if len(match) < 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func toContents(history []ai.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case ai.RoleAssistant:
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if text := strings.TrimSpace(msg.Content); text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
			for _, call := range msg.ToolCalls {
				part := genai.NewPartFromFunctionCall(call.Name, call.Args)
				part.FunctionCall.ID = call.ID
				parts = append(parts, part)
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case ai.RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{"content": msg.Content})
			part.FunctionResponse.ID = msg.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents
}

func toDeclarations(tools []ai.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(tool.Params)),
		}
		for _, param := range tool.Params {
			schema.Properties[param.Name] = &genai.Schema{
				Type:        schemaType(param.Type),
				Description: param.Description,
			}
			if param.Required {
				schema.Required = append(schema.Required, param.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schema,
		})
	}
	return decls
}

func schemaType(t string) genai.Type {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "integer", "int":
		return genai.TypeInteger
	case "number", "float":
		return genai.TypeNumber
	case "boolean", "bool":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

func messageFromResponse(resp *genai.GenerateContentResponse) ai.Message {
	msg := ai.Message{Role: ai.RoleAssistant}
	if resp == nil {
		return msg
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = uuid.NewString()
				}
				msg.ToolCalls = append(msg.ToolCalls, ai.ToolCall{
					ID:   id,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// only the first usable candidate is considered
		break
	}

	msg.Content = builder.String()
	return msg
}
