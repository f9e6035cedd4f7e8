package rxextractor

import "testing"

// =========================================================================
// Tests: named timing codes
// =========================================================================

func TestTimingCodeLabel_NamedCodes(t *testing.T) {
	cases := map[string]string{
		"1-0-1 x 5 days": "twice daily (morning & night)",
		"1 0 1 x 5 days": "twice daily (morning & night)",
		"1-1-1":          "three times daily (morning, afternoon & night)",
		"1-0-0":          "once daily (morning)",
		"0-0-1":          "once daily (night)",
		"1-1-0":          "twice daily (morning & afternoon)",
		"0-1-1":          "twice daily (afternoon & night)",
		"2-0-2":          "twice daily (2 morning & 2 night)",
		"1-2-1":          "four times daily (1 morning, 2 afternoon, 1 night)",
	}
	for window, want := range cases {
		if got := timingCodeLabel(window); got != want {
			t.Errorf("timingCodeLabel(%q) = %q, want %q", window, got, want)
		}
	}
}

func TestTimingCodeLabel_NoCode(t *testing.T) {
	if got := timingCodeLabel("take twice daily"); got != "" {
		t.Errorf("expected empty label, got %q", got)
	}
}

func TestTimingCodeLabel_MustStandAlone(t *testing.T) {
	for _, window := range []string{"21-0-10", "batch 11-0-1", "1-0-12 units", "ref 31 0 1"} {
		if got := timingCodeLabel(window); got != "" {
			t.Errorf("timingCodeLabel(%q) = %q, want empty", window, got)
		}
	}
}

// =========================================================================
// Tests: generic triplet slot analysis
// =========================================================================

func TestGenericTripletLabel_CountsNonZeroSlots(t *testing.T) {
	cases := map[string]string{
		"2-0-0": "once daily (morning)",
		"0-2-0": "once daily (afternoon)",
		"0-0-3": "once daily (night)",
		"2-1-0": "twice daily (morning & afternoon)",
		"3-0-1": "twice daily (morning & night)",
		"0-1-2": "twice daily (afternoon & night)",
		"2-2-2": "three times daily (morning, afternoon & night)",
		"0-0-0": "",
	}
	for window, want := range cases {
		if got := genericTripletLabel(window); got != want {
			t.Errorf("genericTripletLabel(%q) = %q, want %q", window, got, want)
		}
	}
}

func TestGenericTripletLabel_IgnoresDatesAndLargeNumbers(t *testing.T) {
	for _, window := range []string{"12-10-2024", "seen on 4-5-6", "phone 987-654-3210", "no code here"} {
		if got := genericTripletLabel(window); got != "" {
			t.Errorf("genericTripletLabel(%q) = %q, want empty", window, got)
		}
	}
}

// =========================================================================
// Tests: instruction expansion
// =========================================================================

func TestExpandInstructions_KnownLabels(t *testing.T) {
	cases := map[string]string{
		"once daily (morning)":          "Take 1 dose in the morning",
		"once daily (night)":            "Take 1 dose at night",
		"twice daily (morning & night)": "Take 1 dose in the morning and 1 dose at night",
		"three times daily (morning, afternoon & night)": "Take 1 dose in the morning, 1 dose in the afternoon, and 1 dose at night",
	}
	for label, want := range cases {
		if got := ExpandInstructions(label); got != want {
			t.Errorf("ExpandInstructions(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestExpandInstructions_UnknownLabelPassesThrough(t *testing.T) {
	for _, label := range []string{"daily", "every 6 hours", "as needed", ""} {
		if got := ExpandInstructions(label); got != label {
			t.Errorf("ExpandInstructions(%q) = %q, want identity", label, got)
		}
	}
}

// =========================================================================
// Tests: frequencyFromWindow
// =========================================================================

func TestFrequencyFromWindow_CodesBeatPhrases(t *testing.T) {
	lex := NewDefaultFrequencyLexicon()
	// Both a named code and a phrase are present; the code wins.
	got := frequencyFromWindow("Augmentin 625mg 1-0-1 after meals", lex)
	if got != "twice daily (morning & night)" {
		t.Errorf("frequencyFromWindow = %q, want code-derived label", got)
	}
}

func TestFrequencyFromWindow_GenericTripletBeatsPhrases(t *testing.T) {
	lex := NewDefaultFrequencyLexicon()
	got := frequencyFromWindow("2-1-0 after meals", lex)
	if got != "twice daily (morning & afternoon)" {
		t.Errorf("frequencyFromWindow = %q, want triplet-derived label", got)
	}
}

func TestFrequencyFromWindow_PhraseFallback(t *testing.T) {
	lex := NewDefaultFrequencyLexicon()
	got := frequencyFromWindow("take TWICE DAILY with food", lex)
	if got != "twice daily (morning & night)" {
		t.Errorf("frequencyFromWindow = %q, want phrase-derived label", got)
	}
}

func TestFrequencyFromWindow_Default(t *testing.T) {
	lex := NewDefaultFrequencyLexicon()
	if got := frequencyFromWindow("no timing words here", lex); got != "daily" {
		t.Errorf("frequencyFromWindow = %q, want %q", got, "daily")
	}
}
