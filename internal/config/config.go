// Package config loads runtime settings from the environment. Every knob has
// a default so the bot runs with just BOT_TOKEN and service URLs set.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all settings the bot reads at startup.
type Config struct {
	BotToken string
	GuildID  string

	// Transcription language code ("en", "pl", ...).
	Language string
	// When false, every utterance is processed without a wake trigger.
	RequireTrigger bool
	// When true, accepted transcripts are echoed to the invoking text channel.
	LogTranscripts bool

	SilenceThreshold time.Duration
	MinUtterance     time.Duration

	// Wake trigger substrings, lowercased. Short misrecognition variants are
	// intentional: they catch near-miss transcriptions of the wake word.
	Triggers []string
	// Exact normalized phrases to drop as conversational filler.
	IgnoredPhrases []string
	// Bias prompt passed to transcription when trigger enforcement is on.
	InitialPrompt string
	MinChars      int

	HistoryLimit int
	HistoryPrune int

	// STTMode selects "local" (faster-whisper sidecar, raw WAV POST) or
	// "remote" (OpenAI-compatible multipart endpoint).
	STTMode     string
	STTURL      string
	STTAuthKey  string
	STTModel    string
	STTTimeout  time.Duration
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration
	TTSURL      string
	TTSVoice    string
	TTSAuthKey  string
	TTSTimeout  time.Duration
	SearchURL   string
	Timezone    string
	ToolRetries bool

	// SystemPrompt seeds each session's conversation history.
	SystemPrompt string
}

var commonIgnored = []string{
	"yhm", "mhm", "ahem", "khm", "khm khm", "ach", "eh",
	"mm", "mmh", "mmm", "hm", "hmm", "hmmm", "hmmmm", "uh", "uhm",
	"uhmm", "uhmmm", "ehm", "ehmm", "ehmmm", "aha", "oho",
	"ojej", "och", "oj", "hahaha", "hehehe", "hihihi",
	"hohoho", ".", "?", "!",
}

var defaultTriggers = []string{
	"jarvis", "dlarwis", "jarewis", "elvis", "dziarowijs", "dziadowiz",
	"jarvan", "jarwis", "rarwis", "garmin", "jarvi",
}

// Load builds a Config from environment variables with defaults.
func Load() Config {
	lang := strings.ToLower(envStr("LANGUAGE", "en"))
	cfg := Config{
		BotToken:         os.Getenv("BOT_TOKEN"),
		GuildID:          os.Getenv("GUILD_ID"),
		Language:         lang,
		RequireTrigger:   envBool("REQUIRE_TRIGGER", true),
		LogTranscripts:   envBool("LOG_TRANSCRIPTS", true),
		SilenceThreshold: envSeconds("SILENCE_THRESHOLD", 1.0),
		MinUtterance:     envSeconds("MIN_AUDIO_LENGTH", 0.6),
		Triggers:         envList("TRIGGERS", defaultTriggers),
		IgnoredPhrases:   ignoredPhrases(lang),
		InitialPrompt:    envStr("INITIAL_PROMPT", initialPrompt(lang)),
		MinChars:         envInt("MIN_TRANSCRIPT_CHARS", 6),
		HistoryLimit:     envInt("HISTORY_LIMIT", 15),
		HistoryPrune:     envInt("HISTORY_PRUNE", 3),
		STTMode:          strings.ToLower(envStr("STT_MODE", "local")),
		STTURL:           envStr("STT_URL", "http://127.0.0.1:9000/transcribe"),
		STTAuthKey:       os.Getenv("STT_AUTH_TOKEN"),
		STTModel:         envStr("STT_MODEL", "whisper-1"),
		STTTimeout:       envSeconds("STT_TIMEOUT", 30),
		LLMBaseURL:       envStr("OPENAI_BASE_URL", "http://127.0.0.1:8000/v1"),
		LLMAPIKey:        os.Getenv("OPENAI_API_KEY"),
		LLMModel:         envStr("OPENAI_MODEL", ""),
		LLMTimeout:       envSeconds("LLM_TIMEOUT", 30),
		TTSURL:           os.Getenv("TTS_URL"),
		TTSVoice:         envStr("TTS_VOICE", "default"),
		TTSAuthKey:       os.Getenv("TTS_AUTH_TOKEN"),
		TTSTimeout:       envSeconds("TTS_TIMEOUT", 15),
		SearchURL:        os.Getenv("MCP_SEARCH_URL"),
		Timezone:         envStr("TIMEZONE", "UTC"),
		ToolRetries:      envBool("TOOL_FALLBACK", true),
		SystemPrompt: envStr("SYSTEM_PROMPT",
			"You are Jarvis, a helpful voice assistant in a group voice call. "+
				"Answer briefly and conversationally; your replies are spoken aloud."),
	}
	return cfg
}

func ignoredPhrases(lang string) []string {
	out := append([]string(nil), commonIgnored...)
	switch lang {
	case "en":
		out = append(out, "okey", "good", "alright", "fine", "yes", "no")
	case "pl":
		out = append(out, "okej", "dobra", "tak", "nie")
	}
	if v := strings.TrimSpace(os.Getenv("IGNORED_PHRASES")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func initialPrompt(lang string) string {
	switch lang {
	case "pl":
		return "Jarvis, sluchaj."
	default:
		return "Jarvis, listen."
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envSeconds(key string, def float64) time.Duration {
	secs := def
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			secs = f
		}
	}
	return time.Duration(secs * float64(time.Second))
}

func envList(key string, def []string) []string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
