package rxextractor

import (
	"regexp"
	"strings"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// Numeric timing codes (morning-afternoon-night)
// ---------------------------------------------------------------------------

// timingCode pairs a d-d-d pattern (dash or space separated) with its
// canonical frequency label.  The named codes carry dose counts the generic
// slot analysis cannot express ("2-0-2") and are checked first, in order.
// A code must stand alone: a digit run like "21-0-10" never parses as one.
type timingCode struct {
	re    *regexp.Regexp
	label string
}

var timingCodes = []timingCode{
	{regexp.MustCompile(`\b(?:1-0-1|1 0 1)\b`), "twice daily (morning & night)"},
	{regexp.MustCompile(`\b(?:1-1-1|1 1 1)\b`), "three times daily (morning, afternoon & night)"},
	{regexp.MustCompile(`\b(?:1-0-0|1 0 0)\b`), "once daily (morning)"},
	{regexp.MustCompile(`\b(?:0-0-1|0 0 1)\b`), "once daily (night)"},
	{regexp.MustCompile(`\b(?:1-1-0|1 1 0)\b`), "twice daily (morning & afternoon)"},
	{regexp.MustCompile(`\b(?:0-1-1|0 1 1)\b`), "twice daily (afternoon & night)"},
	{regexp.MustCompile(`\b(?:2-0-2|2 0 2)\b`), "twice daily (2 morning & 2 night)"},
	{regexp.MustCompile(`\b(?:1-2-1|1 2 1)\b`), "four times daily (1 morning, 2 afternoon, 1 night)"},
}

// timingCodeLabel returns the label of the first named timing code found in
// the (lowercased) window, or "" when none matches.
func timingCodeLabel(window string) string {
	for _, tc := range timingCodes {
		if tc.re.MatchString(window) {
			return tc.label
		}
	}
	return ""
}

// genericTripletRe matches a dashed dose-count triplet not covered by the
// named codes, e.g. "2-1-0".  Slots are bounded to 0-3 doses and the triplet
// must stand alone, so dates and phone numbers never parse as codes.
var genericTripletRe = regexp.MustCompile(`\b([0-3])-([0-3])-([0-3])\b`)

// genericTripletLabel interprets an arbitrary d-d-d code by slot analysis:
// the count of non-zero slots selects once/twice/three times daily, and the
// identity of the non-zero slots supplies the parenthesised qualifier.
// Returns "" when the window has no triplet or the triplet is all zeros.
func genericTripletLabel(window string) string {
	m := genericTripletRe.FindStringSubmatch(window)
	if m == nil {
		return ""
	}
	morning := m[1] != "0"
	afternoon := m[2] != "0"
	night := m[3] != "0"

	slots := 0
	for _, on := range []bool{morning, afternoon, night} {
		if on {
			slots++
		}
	}

	switch slots {
	case 1:
		switch {
		case morning:
			return "once daily (morning)"
		case afternoon:
			return "once daily (afternoon)"
		default:
			return "once daily (night)"
		}
	case 2:
		switch {
		case morning && night:
			return "twice daily (morning & night)"
		case morning && afternoon:
			return "twice daily (morning & afternoon)"
		default:
			return "twice daily (afternoon & night)"
		}
	case 3:
		return "three times daily (morning, afternoon & night)"
	}
	return ""
}

// ---------------------------------------------------------------------------
// Instruction expansion
// ---------------------------------------------------------------------------

// instructionTable maps canonical slot-qualified frequency labels to
// human-readable administration sentences.
var instructionTable = map[string]string{
	"once daily (morning)":                           "Take 1 dose in the morning",
	"once daily (afternoon)":                         "Take 1 dose in the afternoon",
	"once daily (night)":                             "Take 1 dose at night",
	"twice daily (morning & night)":                  "Take 1 dose in the morning and 1 dose at night",
	"twice daily (morning & afternoon)":              "Take 1 dose in the morning and 1 dose in the afternoon",
	"twice daily (afternoon & night)":                "Take 1 dose in the afternoon and 1 dose at night",
	"three times daily (morning, afternoon & night)": "Take 1 dose in the morning, 1 dose in the afternoon, and 1 dose at night",
}

// ExpandInstructions converts a frequency label into a human-readable
// instruction sentence.  Labels without a mapping pass through unchanged, so
// the function is total and never errors.
func ExpandInstructions(label string) string {
	if instr, ok := instructionTable[label]; ok {
		return instr
	}
	return label
}

// frequencyFromWindow derives the frequency label for a context window.
// Numeric timing codes outrank phrases: named codes first, then generic
// triplet slot analysis, then the frequency lexicon's longest-variant
// containment scan, and finally the "daily" sentinel.
func frequencyFromWindow(window string, lex *FrequencyLexicon) string {
	lower := strings.ToLower(window)

	if label := timingCodeLabel(lower); label != "" {
		return label
	}
	if label := genericTripletLabel(lower); label != "" {
		return label
	}
	if lex != nil {
		if label, ok := lex.LabelFor(lower); ok {
			return label
		}
	}
	return medication.DefaultFrequency
}
