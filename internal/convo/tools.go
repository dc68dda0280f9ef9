package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/discord-voice-assistant/internal/llm"
	"github.com/discord-voice-assistant/internal/mcp"
)

// ErrUnknownTool is returned when the model requests a tool that is not
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Run         func(ctx context.Context, args map[string]any) (string, error)

	compiled *jsonschema.Schema
}

// Registry holds the fixed tool set for a session and validates model
// supplied arguments before execution.
type Registry struct {
	order []string
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles the tool's argument schema and adds it to the registry.
func (r *Registry) Register(t *Tool) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(t.Schema)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", t.Name, err)
	}
	t.compiled = schema
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Specs returns the tool schema in chat-completions request form, in
// registration order.
func (r *Registry) Specs() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.ToolSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return out
}

// Execute validates rawArgs against the tool's schema and runs it. Unknown
// names return ErrUnknownTool.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if rawArgs == "" {
		rawArgs = "{}"
	}
	result := t.compiled.ValidateJSON([]byte(rawArgs))
	if !result.IsValid() {
		return "", fmt.Errorf("invalid arguments for %s: %v", name, result.Errors)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return "", fmt.Errorf("parse arguments for %s: %w", name, err)
	}
	return t.Run(ctx, args)
}

// SearchTool builds the web-search tool backed by an MCP server.
func SearchTool(client *mcp.Client) *Tool {
	return &Tool{
		Name:        "web_search",
		Description: "Search the web for current information. Use for questions about recent events or facts you are unsure of.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Free-text search query"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("empty search query")
			}
			return client.CallTool(ctx, "web_search", map[string]any{"query": query})
		},
	}
}

// TimeTool builds the current-time tool for the configured zone.
func TimeTool(loc *time.Location) *Tool {
	return &Tool{
		Name:        "current_time",
		Description: "Get the current date and time.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			now := time.Now().In(loc)
			return now.Format("Monday, January 2 2006, 15:04 MST"), nil
		},
	}
}
