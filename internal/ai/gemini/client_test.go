package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-curator/internal/ai"
)

type fakeModels struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []modelCall
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type modelCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, modelCall{model: model, contents: contents, config: config})
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.responses[0]
	f.responses = f.responses[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(models *fakeModels, maxRetries int) *Generator {
	g := newGenerator(models, Options{Model: "gemini-pro", MaxRetries: maxRetries, Logger: zap.NewNop()})
	g.wait = func(context.Context, time.Duration) error { return nil }
	return g
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newTestGenerator(models, 2)

	output, err := g.GenerateContent(context.Background(), "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model: %q", call.model)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newTestGenerator(models, 2)

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newTestGenerator(models, 3)

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newTestGenerator(models, 3)

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorStopsWhenWaitIsCancelled(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusServiceUnavailable})

	g := newTestGenerator(models, 3)
	g.wait = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := g.GenerateContent(context.Background(), "msg")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateContentRejectsEmptyPrompt(t *testing.T) {
	g := newTestGenerator(&fakeModels{}, 1)
	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestChatReturnsToolCalls(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{
					Name: "get_jobs",
					Args: map[string]any{"search_term": "go developer"},
				},
			}}},
		}},
	}, nil)

	g := newTestGenerator(models, 1)
	tools := []ai.ToolSpec{{
		Name:        "get_jobs",
		Description: "scrape jobs",
		Params: []ai.ToolParam{
			{Name: "search_term", Type: "string", Required: true},
			{Name: "results_wanted", Type: "integer"},
		},
	}}

	msg, err := g.Chat(context.Background(), "be helpful", []ai.Message{ai.UserMessage("find jobs")}, tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.HasToolCalls() {
		t.Fatalf("expected tool calls, got %+v", msg)
	}
	call := msg.ToolCalls[0]
	if call.Name != "get_jobs" || call.Args["search_term"] != "go developer" {
		t.Fatalf("unexpected tool call: %+v", call)
	}
	if call.ID == "" {
		t.Fatal("expected generated tool call id")
	}

	cfg := models.calls[0].config
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Fatalf("expected system instruction, got %+v", cfg.SystemInstruction)
	}
	if len(cfg.Tools) != 1 || len(cfg.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one function declaration, got %+v", cfg.Tools)
	}
	params := cfg.Tools[0].FunctionDeclarations[0].Parameters
	if params.Properties["results_wanted"].Type != genai.TypeInteger {
		t.Fatalf("unexpected schema type: %v", params.Properties["results_wanted"].Type)
	}
	if len(params.Required) != 1 || params.Required[0] != "search_term" {
		t.Fatalf("unexpected required params: %v", params.Required)
	}
}

func TestChatConvertsHistory(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse("done"), nil)

	g := newTestGenerator(models, 1)
	call := ai.ToolCall{ID: "call-1", Name: "get_jobs", Args: map[string]any{"location": "Remote"}}
	history := []ai.Message{
		ai.UserMessage("find jobs"),
		{Role: ai.RoleAssistant, ToolCalls: []ai.ToolCall{call}},
		ai.ToolResult(call, `[]`),
	}

	msg, err := g.Chat(context.Background(), "", history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "done" || msg.HasToolCalls() {
		t.Fatalf("unexpected reply: %+v", msg)
	}

	contents := models.calls[0].contents
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) || contents[1].Parts[0].FunctionCall == nil {
		t.Fatalf("expected model function call content, got %+v", contents[1])
	}
	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Name != "get_jobs" || resp.ID != "call-1" {
		t.Fatalf("unexpected function response: %+v", resp)
	}
	if models.calls[0].config.SystemInstruction != nil {
		t.Fatal("expected no system instruction for empty system prompt")
	}
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := parseRetryAfter("Please retry in 12.5s.")
	if !ok || d != 12500*time.Millisecond {
		t.Fatalf("unexpected delay: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("no hint here"); ok {
		t.Fatal("expected no delay")
	}
}
