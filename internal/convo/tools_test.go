package convo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRegistrySpecsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	objSchema := json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	for _, name := range []string{"web_search", "current_time"} {
		err := r.Register(&Tool{
			Name:   name,
			Schema: objSchema,
			Run:    func(ctx context.Context, args map[string]any) (string, error) { return "", nil },
		})
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("specs = %d, want 2", len(specs))
	}
	if specs[0].Function.Name != "web_search" || specs[1].Function.Name != "current_time" {
		t.Fatalf("spec order = %s, %s", specs[0].Function.Name, specs[1].Function.Name)
	}
	if specs[0].Type != "function" {
		t.Fatalf("spec type = %q", specs[0].Type)
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "nope", "{}"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestRegistryExecuteEmptyArguments(t *testing.T) {
	// models sometimes send "" instead of "{}" for no-argument tools
	r := NewRegistry()
	err := r.Register(&Tool{
		Name:   "ping",
		Schema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
		Run:    func(ctx context.Context, args map[string]any) (string, error) { return "pong", nil },
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := r.Execute(context.Background(), "ping", "")
	if err != nil || out != "pong" {
		t.Fatalf("Execute = %q, %v", out, err)
	}
}

func TestTimeToolFormat(t *testing.T) {
	tool := TimeTool(time.UTC)
	out, err := tool.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := time.Parse("Monday, January 2 2006, 15:04 MST", out); err != nil {
		t.Fatalf("unparseable time output %q: %v", out, err)
	}
}
