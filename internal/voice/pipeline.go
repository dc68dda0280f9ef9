package voice

import (
	"context"
	"strings"

	"github.com/discord-voice-assistant/internal/convo"
	"github.com/discord-voice-assistant/internal/llm"
	"github.com/discord-voice-assistant/internal/logging"
	"github.com/discord-voice-assistant/internal/stt"
)

// Transcriber is the speech-to-text collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) (string, error)
}

// Converser runs one conversational turn against the session history.
type Converser interface {
	RunTurn(ctx context.Context, history *convo.History) (string, error)
}

// Synthesizer is the text-to-speech collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Pipeline coordinates one turn per completed utterance: wrap the raw PCM,
// transcribe, filter, and - when triggered - converse and speak. Turns are
// independent per utterance; a failure at any stage logs and collapses that
// turn back to idle without affecting other speakers' in-flight turns.
type Pipeline struct {
	STT      Transcriber
	Converse Converser
	TTS      Synthesizer
	Filter   *Filter
	Notify   Notifier

	Language       string
	BiasPrompt     string
	RequireTrigger bool
	LogTranscripts bool
}

// HandleUtterance runs the full turn for one drained utterance.
func (p *Pipeline) HandleUtterance(ctx context.Context, sess *Session, u Utterance) {
	text, err := p.transcribe(ctx, u)
	if err != nil {
		logging.Warnw("pipeline: transcription failed",
			"guild_id", u.GuildID, "user_id", u.UserID,
			"correlation_id", u.CorrelationID, "err", err)
		return
	}
	if text == "" {
		return
	}

	decision := p.Filter.Classify(text)
	if decision.Ignored() {
		logging.Debugw("pipeline: ignoring transcript",
			"guild_id", u.GuildID, "user_id", u.UserID,
			"reason", decision.String(), "correlation_id", u.CorrelationID)
		return
	}

	logging.Infow("pipeline: transcript accepted",
		"guild_id", u.GuildID, "user_id", u.UserID,
		"chars", len(text), "correlation_id", u.CorrelationID)

	// one turn at a time per session; a second accepted transcript waits
	// here instead of conversing concurrently on the shared history
	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	if p.LogTranscripts && p.Notify != nil && sess.TextChannelID != "" {
		if err := p.Notify.PostTranscript(sess.TextChannelID, u.UserID, text); err != nil {
			logging.Warnw("pipeline: transcript echo failed",
				"channel_id", sess.TextChannelID, "err", err,
				"correlation_id", u.CorrelationID)
		}
	}

	sess.History.Append(llm.Message{Role: "user", Content: text})
	reply, err := p.Converse.RunTurn(ctx, sess.History)
	if err != nil {
		logging.Warnw("pipeline: conversation turn failed",
			"guild_id", u.GuildID, "correlation_id", u.CorrelationID, "err", err)
		return
	}
	if reply == "" {
		logging.Debugw("pipeline: empty reply; turn abandoned",
			"correlation_id", u.CorrelationID)
		return
	}

	if p.LogTranscripts && p.Notify != nil && sess.TextChannelID != "" {
		if err := p.Notify.PostReply(sess.TextChannelID, reply); err != nil {
			logging.Warnw("pipeline: reply echo failed",
				"channel_id", sess.TextChannelID, "err", err,
				"correlation_id", u.CorrelationID)
		}
	}

	p.speak(ctx, sess, stripMarkup(reply), u.CorrelationID)
}

func (p *Pipeline) transcribe(ctx context.Context, u Utterance) (string, error) {
	prompt := ""
	if p.RequireTrigger {
		prompt = p.BiasPrompt
	}
	return p.STT.Transcribe(ctx, stt.Request{
		Audio:         WrapPCM(u.PCM),
		Language:      p.Language,
		Prompt:        prompt,
		CorrelationID: u.CorrelationID,
	})
}

// speak holds the speech gate for the full lifetime of synthesis and
// playback. The gate is released on every exit path; a speaking turn already
// in flight is stopped and replaced rather than queued behind.
func (p *Pipeline) speak(ctx context.Context, sess *Session, reply, correlationID string) {
	if p.TTS == nil || sess.Player == nil {
		return
	}
	release := sess.Gate.Acquire(sess.Player.Stop)
	defer release()

	audio, err := p.TTS.Synthesize(ctx, reply)
	if err != nil {
		logging.Warnw("pipeline: synthesis failed",
			"correlation_id", correlationID, "err", err)
		return
	}
	sess.Player.Stop()
	if err := sess.Player.Play(ctx, audio); err != nil {
		logging.Warnw("pipeline: playback failed",
			"correlation_id", correlationID, "err", err)
		return
	}
	logging.Infow("pipeline: reply spoken",
		"correlation_id", correlationID, "chars", len(reply))
}

// stripMarkup removes emphasis characters that text models emit but that
// carry no meaning for speech.
func stripMarkup(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '`', '#':
			return -1
		}
		return r
	}, s)
}
