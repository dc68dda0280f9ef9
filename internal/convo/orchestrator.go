package convo

import (
	"context"
	"errors"
	"strings"

	"github.com/discord-voice-assistant/internal/llm"
	"github.com/discord-voice-assistant/internal/logging"
)

// ChatClient is the conversational-model collaborator.
type ChatClient interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool, toolChoice string) (llm.Message, error)
}

// Orchestrator executes one conversational turn: model call, tool execution
// when requested, and a forced no-tools follow-up for the final answer.
type Orchestrator struct {
	chat  ChatClient
	tools *Registry
	// fallback enables one retry without the tool schema when the model
	// rejects the request as malformed.
	fallback bool
}

func NewOrchestrator(chat ChatClient, tools *Registry, fallback bool) *Orchestrator {
	return &Orchestrator{chat: chat, tools: tools, fallback: fallback}
}

// RunTurn invokes the model with the full history and the tool schema. Tool
// calls are resolved to exactly one tool-result turn each before a second
// model call with tool_choice "none", which cannot recurse into more tool
// calls. A successful final answer is appended as an assistant turn and the
// history pruned; an empty answer abandons the turn with no assistant turn
// beyond the tool bookkeeping already recorded.
func (o *Orchestrator) RunTurn(ctx context.Context, history *History) (string, error) {
	specs := o.tools.Specs()
	resp, err := o.chat.Complete(ctx, history.Snapshot(), specs, "auto")
	if err != nil {
		if !o.fallback || !errors.Is(err, llm.ErrPermanent) {
			return "", err
		}
		// Malformed-request class: retry once without tools, accepting a
		// plain answer with no tool access for this turn.
		logging.Warnw("orchestrator: model rejected tool request; retrying without tools", "err", err)
		resp, err = o.chat.Complete(ctx, history.Snapshot(), nil, "")
		if err != nil {
			return "", err
		}
	}

	if len(resp.ToolCalls) > 0 {
		history.Append(resp)
		for _, call := range resp.ToolCalls {
			result := o.execute(ctx, call)
			history.Append(llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
		resp, err = o.chat.Complete(ctx, history.Snapshot(), specs, "none")
		if err != nil {
			return "", err
		}
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", nil
	}
	history.Append(llm.Message{Role: "assistant", Content: reply})
	history.Prune()
	return reply, nil
}

// execute resolves one tool call to result text. Failures and unknown tool
// names become result text rather than errors so the call id is always
// answered before the follow-up model call.
func (o *Orchestrator) execute(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name
	out, err := o.tools.Execute(ctx, name, call.Function.Arguments)
	if err != nil {
		if errors.Is(err, ErrUnknownTool) {
			logging.Warnw("orchestrator: skipping unknown tool", "tool", name, "call_id", call.ID)
			return "tool not available: " + name
		}
		logging.Warnw("orchestrator: tool failed", "tool", name, "call_id", call.ID, "err", err)
		return "tool error: " + err.Error()
	}
	logging.Debugw("orchestrator: tool executed", "tool", name, "call_id", call.ID, "result_len", len(out))
	return out
}
