package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/discord-voice-assistant/internal/logging"
)

// Endpointer periodically scans a session's capture buffers for speakers who
// have gone silent and drains their completed utterances onto the handoff
// channel. Drains shorter than the minimum duration are discarded as noise.
type Endpointer struct {
	guildID  string
	buffers  *CaptureBuffers
	gate     *SpeechGate
	out      chan Utterance
	interval time.Duration
	silence  time.Duration
	minBytes int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEndpointer creates a stopped endpointer; call Start to begin scanning.
// Utterances are handed off on Out; the channel is bounded and a full queue
// drops the utterance with a warning rather than blocking the scan.
func NewEndpointer(guildID string, buffers *CaptureBuffers, gate *SpeechGate, interval, silence, minUtterance time.Duration) *Endpointer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Endpointer{
		guildID:  guildID,
		buffers:  buffers,
		gate:     gate,
		out:      make(chan Utterance, 8),
		interval: interval,
		silence:  silence,
		minBytes: int(minUtterance.Seconds() * BytesPerSecond),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Out is the handoff channel of completed utterances.
func (e *Endpointer) Out() <-chan Utterance { return e.out }

// Start launches the periodic scan and the packet-count watchdog.
func (e *Endpointer) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.safeTick(time.Now())
			}
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		var last int64 = -1
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				cur := e.buffers.Packets()
				delta := int64(0)
				if last >= 0 {
					delta = cur - last
				}
				last = cur
				logging.Debugw("endpointer: packet watchdog", "guild_id", e.guildID, "packets", cur, "delta", delta)
			}
		}
	}()
}

// Stop halts scanning and closes the handoff channel.
func (e *Endpointer) Stop() {
	e.cancel()
	e.wg.Wait()
	close(e.out)
}

// safeTick runs one scan, recovering from panics so a bad tick never
// terminates the periodic task.
func (e *Endpointer) safeTick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw("endpointer: tick panic recovered", "guild_id", e.guildID, "panic", r)
		}
	}()
	e.tick(now)
}

func (e *Endpointer) tick(now time.Time) {
	if e.gate != nil && e.gate.Held() {
		return
	}
	for _, d := range e.buffers.DrainSilent(now, e.silence) {
		if len(d.PCM) < e.minBytes {
			logging.Debugw("endpointer: discarding short capture",
				"guild_id", e.guildID, "user_id", d.UserID,
				"bytes", len(d.PCM), "min_bytes", e.minBytes)
			continue
		}
		u := Utterance{
			GuildID:       e.guildID,
			UserID:        d.UserID,
			PCM:           d.PCM,
			Duration:      PCMDuration(len(d.PCM)),
			CorrelationID: uuid.NewString(),
			CapturedAt:    now,
		}
		select {
		case e.out <- u:
			logging.Debugw("endpointer: utterance drained",
				"guild_id", e.guildID, "user_id", u.UserID,
				"duration_ms", u.Duration.Milliseconds(),
				"correlation_id", u.CorrelationID)
		default:
			logging.Warnw("endpointer: dropping utterance; queue full",
				"guild_id", e.guildID, "user_id", u.UserID,
				"correlation_id", u.CorrelationID)
		}
	}
}
