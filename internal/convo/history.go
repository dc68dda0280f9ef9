// Package convo holds the shared conversation state for a voice session and
// the orchestrator that drives a model turn, including its tool-calling
// sub-protocol.
package convo

import (
	"sync"

	"github.com/discord-voice-assistant/internal/llm"
)

// History is the bounded, ordered turn history shared by every speaker in a
// session. It always starts with exactly one system turn. Mutations are
// serialized by an internal mutex.
type History struct {
	mu     sync.Mutex
	turns  []llm.Message
	limit  int
	window int
}

// NewHistory creates a history seeded with the system prompt. limit is the
// length ceiling; window is how many of the oldest non-system turns a prune
// removes.
func NewHistory(systemPrompt string, limit, window int) *History {
	if limit < 2 {
		limit = 2
	}
	if window < 1 {
		window = 1
	}
	return &History{
		turns:  []llm.Message{{Role: "system", Content: systemPrompt}},
		limit:  limit,
		window: window,
	}
}

// Append adds turns to the ordered history.
func (h *History) Append(turns ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Prune enforces the length ceiling. When the history exceeds the limit, a
// contiguous window of the oldest turns starting just after the system turn
// is removed. The window is positional: it may split a tool-call/tool-result
// pair, and that is accepted behavior rather than something to repair.
func (h *History) Prune() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) <= h.limit {
		return
	}
	n := h.window
	if n > len(h.turns)-1 {
		n = len(h.turns) - 1
	}
	h.turns = append(h.turns[:1], h.turns[1+n:]...)
}

// Snapshot returns a copy of the current turns for a model call.
func (h *History) Snapshot() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the current number of turns including the system turn.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
