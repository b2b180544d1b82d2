// Package aitest provides scripted ai.ChatModel and ai.TextModel fakes for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/spigell/job-curator/internal/ai"
)

// ErrExhausted is returned when a fake has no scripted responses left.
var ErrExhausted = errors.New("aitest: no scripted response left")

type ChatCall struct {
	System  string
	History []ai.Message
	Tools   []ai.ToolSpec
}

// Chat replays scripted replies in order and records every call.
type Chat struct {
	mu      sync.Mutex
	replies []chatReply
	Calls   []ChatCall
}

type chatReply struct {
	msg ai.Message
	err error
}

func (c *Chat) Reply(msg ai.Message) *Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Role == "" {
		msg.Role = ai.RoleAssistant
	}
	c.replies = append(c.replies, chatReply{msg: msg})
	return c
}

func (c *Chat) Fail(err error) *Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, chatReply{err: err})
	return c
}

func (c *Chat) Chat(_ context.Context, system string, history []ai.Message, tools []ai.ToolSpec) (ai.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, ChatCall{
		System:  system,
		History: append([]ai.Message(nil), history...),
		Tools:   tools,
	})
	if len(c.replies) == 0 {
		return ai.Message{}, ErrExhausted
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return next.msg, next.err
}

// Text answers prompts with a responder function, or with scripted outputs when Fn is nil.
type Text struct {
	mu      sync.Mutex
	Fn      func(prompt string) (string, error)
	outputs []textReply
	Prompts []string
}

type textReply struct {
	text string
	err  error
}

func (t *Text) Reply(texts ...string) *Text {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, text := range texts {
		t.outputs = append(t.outputs, textReply{text: text})
	}
	return t
}

func (t *Text) Fail(err error) *Text {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs = append(t.outputs, textReply{err: err})
	return t
}

func (t *Text) GenerateContent(_ context.Context, prompt string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Prompts = append(t.Prompts, prompt)
	if t.Fn != nil {
		return t.Fn(prompt)
	}
	if len(t.outputs) == 0 {
		return "", ErrExhausted
	}
	next := t.outputs[0]
	t.outputs = t.outputs[1:]
	return next.text, next.err
}

// Calls returns how many prompts were answered.
func (t *Text) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Prompts)
}
