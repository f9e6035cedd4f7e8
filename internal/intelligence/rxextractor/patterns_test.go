package rxextractor

import (
	"testing"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// =========================================================================
// Helper: extractor impl with default lexicons
// =========================================================================

func newTestImpl(t *testing.T) *extractorImpl {
	t.Helper()
	ext, err := NewExtractor(
		NewDefaultMedicationLexicon(),
		NewDefaultFrequencyLexicon(),
		DefaultExtractorConfig(),
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return ext.(*extractorImpl)
}

func findCandidate(cands []*medication.MedicationCandidate, name string) *medication.MedicationCandidate {
	for _, c := range cands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// =========================================================================
// Tests: extractByPattern
// =========================================================================

func TestExtractByPattern_FormPrefixedWithDosage(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("Tab. Augmentin 625mg 1-0-1 x 5 days")

	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Name != "Augmentin" {
		t.Errorf("name = %q, want Augmentin", c.Name)
	}
	if c.Dosage != "625 mg" {
		t.Errorf("dosage = %q, want 625 mg", c.Dosage)
	}
	if c.Frequency != "twice daily (morning & night)" {
		t.Errorf("frequency = %q", c.Frequency)
	}
	if c.Duration != "5 days" {
		t.Errorf("duration = %q, want 5 days", c.Duration)
	}
	if c.Source != medication.SourcePatternBased || c.Confidence != 0.7 {
		t.Errorf("provenance = %q/%.1f, want pattern_based/0.7", c.Source, c.Confidence)
	}
}

func TestExtractByPattern_FormPrefixedWithoutDosage(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("Tab. Enzoflam 1-0-1 x 3 days")

	c := findCandidate(cands, "Enzoflam")
	if c == nil {
		t.Fatalf("Enzoflam not found in %+v", cands)
	}
	if c.Dosage != "1 tablet" {
		t.Errorf("dosage = %q, want the 1 tablet default", c.Dosage)
	}
	if c.Duration != "3 days" {
		t.Errorf("duration = %q, want 3 days", c.Duration)
	}
}

func TestExtractByPattern_BareNameWithDosage(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("Metformin 500mg")

	c := findCandidate(cands, "Metformin")
	if c == nil {
		t.Fatalf("Metformin not found in %+v", cands)
	}
	if c.Dosage != "500 mg" {
		t.Errorf("dosage = %q, want 500 mg", c.Dosage)
	}
	if c.Frequency != "daily" {
		t.Errorf("frequency = %q, want the daily default", c.Frequency)
	}
	if c.Duration != "7 days" {
		t.Errorf("duration = %q, want the 7 days default", c.Duration)
	}
}

func TestExtractByPattern_DosageFirstRecoversName(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("500mg Metformin twice daily")

	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Name != "Metformin" {
		t.Errorf("name = %q, want recovered Metformin", c.Name)
	}
	if c.Dosage != "500 mg" {
		t.Errorf("dosage = %q, want 500 mg", c.Dosage)
	}
	if c.Frequency != "twice daily (morning & night)" {
		t.Errorf("frequency = %q", c.Frequency)
	}
}

func TestExtractByPattern_DosageFirstDiscardsWhenNoName(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("500mg at 8am")
	if len(cands) != 0 {
		t.Errorf("expected no candidates without a recoverable name, got %+v", cands)
	}
}

func TestExtractByPattern_FirstMatchPerNameWins(t *testing.T) {
	e := newTestImpl(t)
	cands := e.extractByPattern("Tab. Augmentin 625mg morning, Augmentin 250mg night")

	c := findCandidate(cands, "Augmentin")
	if c == nil {
		t.Fatal("Augmentin not found")
	}
	if c.Dosage != "625 mg" {
		t.Errorf("dosage = %q, want the first match's 625 mg", c.Dosage)
	}
	count := 0
	for _, cc := range cands {
		if cc.Name == "Augmentin" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d Augmentin candidates, want 1", count)
	}
}

func TestExtractByPattern_RejectsShortAndNumericNames(t *testing.T) {
	e := newTestImpl(t)
	if cands := e.extractByPattern("Tab. Ab 100mg"); len(cands) != 0 {
		t.Errorf("expected 2-letter name to be rejected, got %+v", cands)
	}
	if cands := e.extractByPattern(""); len(cands) != 0 {
		t.Errorf("expected no candidates for empty text, got %+v", cands)
	}
}

func TestExtractByPattern_MultipleMedications(t *testing.T) {
	e := newTestImpl(t)
	text := "Tab. Augmentin 625mg 1-0-1 x 5 days Tab. Enzoflam 500mg 1-0-1 x 3 days Cap. Omeprazole 20mg 1-0-0 x 10 days"
	cands := e.extractByPattern(text)

	for _, name := range []string{"Augmentin", "Enzoflam", "Omeprazole"} {
		if findCandidate(cands, name) == nil {
			t.Errorf("%s not found in %+v", name, cands)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"625", true},
		{"0", true},
		{"", false},
		{"62a", false},
		{"6.5", false},
	}
	for _, c := range cases {
		if got := isNumeric(c.in); got != c.want {
			t.Errorf("isNumeric(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
