package rxextractor

import (
	"strings"
	"testing"
)

// =========================================================================
// Tests: Normalize
// =========================================================================

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := Normalize("Tab.   Augmentin\t625mg\n\n1-0-1")
	want := "Tab. Augmentin 625mg 1-0-1"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalize_StripsDisallowedCharacters(t *testing.T) {
	got := Normalize("Rx* Aspirin™ 100mg @night")
	if strings.ContainsAny(got, "*™@") {
		t.Errorf("disallowed characters survived: %q", got)
	}
	if !strings.Contains(got, "Aspirin") || !strings.Contains(got, "100mg") {
		t.Errorf("expected name and dosage to survive, got %q", got)
	}
}

func TestNormalize_KeepsMedicalPunctuation(t *testing.T) {
	in := "Tab. Calpol (250mg/5ml), 1-0-1; 50% dose"
	got := Normalize(in)
	if got != in {
		t.Errorf("allow-listed punctuation was altered:\n in: %q\nout: %q", in, got)
	}
}

func TestNormalize_NeverAltersDigits(t *testing.T) {
	got := Normalize("0mg l0 625 1O1")
	for _, want := range []string{"0mg", "l0", "625", "1O1"} {
		if !strings.Contains(got, want) {
			t.Errorf("digit-bearing token %q was altered, got %q", want, got)
		}
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	if got := Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want empty", got)
	}
	if got := Normalize("   \t\n  "); got != "" {
		t.Errorf("Normalize(whitespace) = %q, want empty", got)
	}
}

// =========================================================================
// Tests: tokenise
// =========================================================================

func TestTokenise_WordsAndOffsets(t *testing.T) {
	tokens := tokenise("Tab. Meftol-P 125mg")
	want := []wordToken{
		{text: "Tab", start: 0},
		{text: "Meftol-P", start: 5},
		{text: "125mg", start: 14},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(want))
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("token[%d] = %+v, want %+v", i, tokens[i], w)
		}
	}
}

func TestTokenise_Empty(t *testing.T) {
	if tokens := tokenise("... !!! ..."); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}

// =========================================================================
// Tests: fuzzyMatch
// =========================================================================

func TestFuzzyMatch(t *testing.T) {
	cases := []struct {
		word, target string
		want         bool
	}{
		{"metformin", "metformin", true},  // exact
		{"Metformin", "metformin", true},  // case-insensitive
		{"metformn", "metformin", true},   // one deletion
		{"metfornin", "metformin", true},  // one substitution
		{"metform", "metformin", true},    // shared prefix >= 5, length within 3
		{"tab", "tub", false},             // short words must match exactly
		{"asa", "asa", true},              // short exact is fine
		{"aspirin", "metformin", false},   // unrelated
		{"augmentin", "augment", true},    // prefix heuristic
		{"meal", "meals", true},           // one insertion
		{"metal", "meter", false},         // two substitutions, short shared prefix
	}
	for _, c := range cases {
		if got := fuzzyMatch(c.word, c.target); got != c.want {
			t.Errorf("fuzzyMatch(%q, %q) = %v, want %v", c.word, c.target, got, c.want)
		}
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"metformin", "metformn", 1},
		{"aspirin", "aspirin", 0},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

// =========================================================================
// Tests: titleCase
// =========================================================================

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"augmentin", "Augmentin"},
		{"PanD", "Pand"},
		{"meftol-p", "Meftol-P"},
		{"syp calpol", "Syp Calpol"},
		{"ASPIRIN", "Aspirin"},
		{"", ""},
	}
	for _, c := range cases {
		if got := titleCase(c.in); got != c.want {
			t.Errorf("titleCase(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
