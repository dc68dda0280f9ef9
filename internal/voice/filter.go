package voice

import "strings"

// Decision is the outcome of classifying a transcript.
type Decision int

const (
	// Pass means the utterance should drive a conversational turn.
	Pass Decision = iota
	// IgnoreShort drops transcripts under the minimum length.
	IgnoreShort
	// IgnorePhrase drops exact matches against the configured denylist.
	IgnorePhrase
	// IgnoreNoTrigger drops transcripts lacking a wake trigger.
	IgnoreNoTrigger
)

// Ignored reports whether the utterance should be dropped.
func (d Decision) Ignored() bool { return d != Pass }

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case IgnoreShort:
		return "too_short"
	case IgnorePhrase:
		return "ignored_phrase"
	case IgnoreNoTrigger:
		return "no_trigger"
	}
	return "unknown"
}

// Filter classifies transcribed utterances as noise, ignorable filler, or a
// wake-triggered command. Classify is a pure function of the input text and
// the filter's configuration.
type Filter struct {
	MinChars       int
	RequireTrigger bool
	Triggers       []string
	ignored        map[string]struct{}
}

func NewFilter(minChars int, requireTrigger bool, triggers, ignoredPhrases []string) *Filter {
	ig := make(map[string]struct{}, len(ignoredPhrases))
	for _, p := range ignoredPhrases {
		ig[normalize(p)] = struct{}{}
	}
	return &Filter{
		MinChars:       minChars,
		RequireTrigger: requireTrigger,
		Triggers:       triggers,
		ignored:        ig,
	}
}

const strippedPunct = ",.?!"

func normalize(text string) string {
	s := strings.ToLower(text)
	for _, ch := range strippedPunct {
		s = strings.ReplaceAll(s, string(ch), "")
	}
	return strings.TrimSpace(s)
}

// Classify decides whether a transcript drives a turn. Matching is
// case-insensitive; triggers match as substrings, not whole words, so short
// trigger variants catch near-miss transcriptions of the wake word.
func (f *Filter) Classify(text string) Decision {
	clean := normalize(text)
	if len([]rune(clean)) < f.MinChars {
		return IgnoreShort
	}
	if _, ok := f.ignored[clean]; ok {
		return IgnorePhrase
	}
	if f.RequireTrigger {
		for _, trig := range f.Triggers {
			if trig != "" && strings.Contains(clean, strings.ToLower(trig)) {
				return Pass
			}
		}
		return IgnoreNoTrigger
	}
	return Pass
}
