package voice

import (
	"sync"
	"sync/atomic"
	"time"
)

// speakerBuffer accumulates raw PCM for one speaker between silences.
type speakerBuffer struct {
	pcm       []byte
	lastWrite time.Time
}

// CaptureBuffers owns the per-speaker audio accumulators for one session.
// One mutex guards the whole map: writes and the endpointer's scan/drain
// must observe a consistent snapshot, so entries are never mutated while a
// drain of another entry is in progress.
type CaptureBuffers struct {
	mu      sync.Mutex
	buffers map[string]*speakerBuffer
	gate    *SpeechGate
	packets int64
}

func NewCaptureBuffers(gate *SpeechGate) *CaptureBuffers {
	return &CaptureBuffers{
		buffers: make(map[string]*speakerBuffer),
		gate:    gate,
	}
}

// Write appends decoded PCM for a speaker and refreshes its last-activity
// timestamp. It is a no-op while the speech gate is held or when the inputs
// are empty.
func (b *CaptureBuffers) Write(userID string, pcm []byte) {
	if userID == "" || len(pcm) == 0 {
		return
	}
	if b.gate != nil && b.gate.Held() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.buffers[userID]
	if !ok {
		sb = &speakerBuffer{pcm: make([]byte, 0, len(pcm)*8)}
		b.buffers[userID] = sb
	}
	sb.pcm = append(sb.pcm, pcm...)
	sb.lastWrite = time.Now()
	atomic.AddInt64(&b.packets, 1)
}

// Drain atomically removes and returns the full contents of a speaker's
// buffer, clearing its activity record. The second return is false when the
// speaker has no buffer.
func (b *CaptureBuffers) Drain(userID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sb, ok := b.buffers[userID]
	if !ok {
		return nil, false
	}
	delete(b.buffers, userID)
	return sb.pcm, true
}

// Drained is one speaker's completed capture removed by DrainSilent.
type Drained struct {
	UserID string
	PCM    []byte
}

// DrainSilent removes and returns every buffer whose last write is older
// than threshold. The silence verdict and the removal happen under one lock
// acquisition, so a speaker resuming at the boundary either lands the write
// before the drain or starts a fresh buffer after it; a new sentence is
// never glued onto the flushed utterance.
func (b *CaptureBuffers) DrainSilent(now time.Time, threshold time.Duration) []Drained {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Drained
	for id, sb := range b.buffers {
		if now.Sub(sb.lastWrite) > threshold {
			out = append(out, Drained{UserID: id, PCM: sb.pcm})
			delete(b.buffers, id)
		}
	}
	return out
}

// Packets returns the monotonically increasing count of accepted writes.
// Used by the liveness watchdog only.
func (b *CaptureBuffers) Packets() int64 {
	return atomic.LoadInt64(&b.packets)
}
