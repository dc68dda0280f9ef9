package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteParsesAssistantMessage(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "test-model", time.Second)
	msg, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, "auto")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if msg.Role != "assistant" || msg.Content != "hello there" {
		t.Fatalf("message = %+v", msg)
	}
	if gotReq.Model != "test-model" {
		t.Fatalf("request model = %q", gotReq.Model)
	}
	if gotReq.ToolChoice != "" {
		t.Fatalf("tool_choice sent without tools: %q", gotReq.ToolChoice)
	}
}

func TestCompleteSendsToolSchema(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	tools := []Tool{{Type: "function", Function: ToolSchema{Name: "web_search"}}}
	c := NewClient(srv.URL, "", "m", time.Second)
	msg, err := c.Complete(context.Background(), nil, tools, "none")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if msg.Role != "assistant" {
		t.Fatalf("missing role should default to assistant, got %q", msg.Role)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "web_search" {
		t.Fatalf("request tools = %+v", gotReq.Tools)
	}
	if gotReq.ToolChoice != "none" {
		t.Fatalf("tool_choice = %q, want none", gotReq.ToolChoice)
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"",
			"tool_calls":[{"id":"call_1","type":"function",
				"function":{"name":"current_time","arguments":"{}"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", time.Second)
	msg, err := c.Complete(context.Background(), nil, nil, "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
	call := msg.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "current_time" || call.Function.Arguments != "{}" {
		t.Fatalf("call = %+v", call)
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrPermanent},
		{http.StatusUnauthorized, ErrPermanent},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.URL, "", "m", time.Second)
		_, err := c.Complete(context.Background(), nil, nil, "")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestCompleteNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "", "m", time.Second)
	if _, err := c.Complete(context.Background(), nil, nil, ""); !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", time.Second)
	if _, err := c.Complete(context.Background(), nil, nil, ""); !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
}
