// Package ai defines the model-agnostic chat and text capabilities used by the
// pipeline. Provider packages such as gemini implement them.
package ai

import "context"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry of a conversation. Tool results carry the ToolCallID
// and Name of the call they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func ToolResult(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}

// HasToolCalls reports whether the message asks for at least one tool invocation.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

type ToolParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolSpec describes a tool the chat model may call.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ChatModel answers a conversation and may request tool calls.
type ChatModel interface {
	Chat(ctx context.Context, system string, history []Message, tools []ToolSpec) (Message, error)
}

// TextModel turns a single prompt into text.
type TextModel interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Model is a provider that serves both capabilities.
type Model interface {
	ChatModel
	TextModel
	Model() string
}
