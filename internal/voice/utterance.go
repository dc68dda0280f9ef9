package voice

import "time"

// Utterance is one speaker's contiguous audio captured between silences.
// Immutable once produced by a drain; consumed exactly once by the pipeline.
type Utterance struct {
	GuildID       string
	UserID        string
	PCM           []byte
	Duration      time.Duration
	CorrelationID string
	CapturedAt    time.Time
}
