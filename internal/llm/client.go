// Package llm is a minimal client for OpenAI-compatible chat-completions
// endpoints, with function-tool support and a forced "no tools" mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrPermanent marks malformed-request class failures (4xx); the caller
	// should not retry the same request shape.
	ErrPermanent = errors.New("permanent error")
	// ErrTransient marks network and server-side failures worth retrying.
	ErrTransient = errors.New("transient error")
)

// Message is one turn on the wire: system, user, assistant (optionally
// carrying tool calls), or a tool result tagged with the originating call id.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model-issued request to invoke a named function.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a callable function in the request schema.
type Tool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model      string    `json:"model,omitempty"`
	Messages   []Message `json:"messages"`
	Tools      []Tool    `json:"tools,omitempty"`
	ToolChoice string    `json:"tool_choice,omitempty"`
	MaxTokens  int       `json:"max_tokens,omitempty"`
}

type Client struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	HTTP      *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Complete posts the history plus optional tool schema and returns the
// model's message. toolChoice "none" forbids further tool calls; empty means
// the server default.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []Tool, toolChoice string) (Message, error) {
	payload := chatRequest{
		Model:      c.Model,
		Messages:   messages,
		Tools:      tools,
		ToolChoice: toolChoice,
		MaxTokens:  c.MaxTokens,
	}
	if len(tools) == 0 {
		payload.ToolChoice = ""
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: marshal request: %v", ErrPermanent, err)
	}

	url := c.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("%w: new request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out struct {
			Choices []struct {
				Message Message `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Message{}, fmt.Errorf("%w: decode response: %v", ErrTransient, err)
		}
		if len(out.Choices) == 0 {
			return Message{}, fmt.Errorf("%w: empty choices", ErrTransient)
		}
		msg := out.Choices[0].Message
		if msg.Role == "" {
			msg.Role = "assistant"
		}
		return msg, nil
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return Message{}, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}
	return Message{}, fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
}
