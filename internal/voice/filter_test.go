package voice

import "testing"

func newTestFilter(requireTrigger bool) *Filter {
	return NewFilter(6, requireTrigger,
		[]string{"jarvis", "jarwis"},
		[]string{"okay", "alright", "hmm"},
	)
}

func TestClassifyShortText(t *testing.T) {
	f := newTestFilter(false)
	for _, text := range []string{"", "hi", "ok?", "Yes.", "no!!"} {
		if got := f.Classify(text); got != IgnoreShort {
			t.Errorf("Classify(%q) = %v, want IgnoreShort", text, got)
		}
	}
}

func TestClassifyIgnoredPhrase(t *testing.T) {
	f := newTestFilter(false)
	if got := f.Classify("Alright."); got != IgnorePhrase {
		t.Fatalf("Classify(%q) = %v, want IgnorePhrase", "Alright.", got)
	}
}

func TestClassifyOkayIsIgnored(t *testing.T) {
	f := newTestFilter(false)
	if got := f.Classify("Okay."); !got.Ignored() {
		t.Fatalf("Classify(%q) = %v, want ignored", "Okay.", got)
	}
}

func TestClassifyTriggerRequired(t *testing.T) {
	f := newTestFilter(true)
	if got := f.Classify("hey jarvis what time is it"); got != Pass {
		t.Fatalf("triggered text = %v, want Pass", got)
	}
	if got := f.Classify("what time is it"); got != IgnoreNoTrigger {
		t.Fatalf("untriggered text = %v, want IgnoreNoTrigger", got)
	}
}

func TestClassifyTriggerSubstring(t *testing.T) {
	// trigger variants match inside words, catching near-miss transcriptions
	f := newTestFilter(true)
	if got := f.Classify("Hey Jarwis, are you there?"); got != Pass {
		t.Fatalf("variant trigger = %v, want Pass", got)
	}
}

func TestClassifyNoTriggerMode(t *testing.T) {
	f := newTestFilter(false)
	if got := f.Classify("what time is it"); got != Pass {
		t.Fatalf("Classify without trigger enforcement = %v, want Pass", got)
	}
}

func TestClassifyIsPure(t *testing.T) {
	f := newTestFilter(true)
	input := "hey jarvis remind me later"
	first := f.Classify(input)
	for i := 0; i < 10; i++ {
		if got := f.Classify(input); got != first {
			t.Fatalf("Classify not deterministic: %v then %v", first, got)
		}
	}
}
