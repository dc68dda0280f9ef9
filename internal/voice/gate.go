package voice

import "sync"

// SpeechGate is the session-wide mutual exclusion between accepting
// microphone audio and emitting synthesized audio. While held, buffer writes
// are dropped and the endpointer performs no flushes, so the bot's own
// playback can never be captured as a new utterance.
type SpeechGate struct {
	mu   sync.Mutex
	held bool
	gen  uint64
	stop func()
}

func NewSpeechGate() *SpeechGate { return &SpeechGate{} }

// Held reports whether a speaking turn is currently in flight.
func (g *SpeechGate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Acquire takes the gate for a new speaking turn. If another turn holds the
// gate its stop callback is invoked first: a second attempt to speak stops
// the current playback and takes over rather than queueing. The returned
// release func is idempotent and only releases this acquisition, so a
// preempted turn's deferred release cannot free the gate under the new
// holder.
func (g *SpeechGate) Acquire(stop func()) (release func()) {
	g.mu.Lock()
	prev := g.stop
	preempted := g.held
	g.held = true
	g.gen++
	gen := g.gen
	g.stop = stop
	g.mu.Unlock()

	if preempted && prev != nil {
		prev()
	}

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.gen != gen {
			return
		}
		g.held = false
		g.stop = nil
	}
}
