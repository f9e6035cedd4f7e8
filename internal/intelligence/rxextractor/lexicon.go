// Package rxextractor implements the prescription-text extraction pipeline:
// OCR-noise-tolerant medication recognition over two independent strategies
// (lexicon containment and layout patterns), context-window sub-extraction of
// dosage, frequency, and duration, and entity merging that reduces the
// candidates from both strategies to one best record per drug.
//
// The pipeline is rule-based and deterministic.  Absence of information is
// never an error: fields the text does not yield fall back to documented
// sentinels, and empty or garbage input produces an empty result.
package rxextractor

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Medication lexicon
// ---------------------------------------------------------------------------

// MedicationEntry maps one canonical drug name to the surface variants
// (brands, abbreviations, form-prefixed spellings) that should resolve to it.
// Variants are stored lowercased.
type MedicationEntry struct {
	Canonical string
	Variants  []string
}

// MedicationLexicon is the static drug-name table used by the lexicon-matching
// strategy.  Entries keep their load order so extraction output is
// deterministic; the lexicon is immutable after construction and safe for
// concurrent readers.
type MedicationLexicon struct {
	entries []MedicationEntry
	index   map[string]int
}

// NewMedicationLexicon builds a lexicon from the given entries, lowercasing
// every variant.  A canonical name is always accepted as its own variant.
func NewMedicationLexicon(entries []MedicationEntry) *MedicationLexicon {
	lex := &MedicationLexicon{
		entries: make([]MedicationEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		canonical := strings.ToLower(strings.TrimSpace(e.Canonical))
		if canonical == "" {
			continue
		}
		if _, dup := lex.index[canonical]; dup {
			continue
		}
		variants := make([]string, 0, len(e.Variants)+1)
		seen := make(map[string]bool, len(e.Variants)+1)
		for _, v := range append([]string{canonical}, e.Variants...) {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			variants = append(variants, v)
		}
		lex.index[canonical] = len(lex.entries)
		lex.entries = append(lex.entries, MedicationEntry{Canonical: canonical, Variants: variants})
	}
	return lex
}

// Entries returns the lexicon's entries in load order.  Callers must not
// mutate the returned slice.
func (l *MedicationLexicon) Entries() []MedicationEntry {
	return l.entries
}

// Lookup reports whether name (case-insensitive) is a canonical drug name.
func (l *MedicationLexicon) Lookup(name string) (MedicationEntry, bool) {
	i, ok := l.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return MedicationEntry{}, false
	}
	return l.entries[i], true
}

// Size returns the number of canonical drugs in the lexicon.
func (l *MedicationLexicon) Size() int {
	return len(l.entries)
}

// NewDefaultMedicationLexicon returns the built-in drug table.  It covers the
// common generics with their brand aliases plus the Indian-prescription brand
// names (including "tab X" / "syp X" / "cap X" spellings) seen in sample
// prescriptions.
func NewDefaultMedicationLexicon() *MedicationLexicon {
	return NewMedicationLexicon([]MedicationEntry{
		{Canonical: "aspirin", Variants: []string{"acetylsalicylic acid", "asa"}},
		{Canonical: "ibuprofen", Variants: []string{"advil", "motrin", "brufen"}},
		{Canonical: "acetaminophen", Variants: []string{"paracetamol", "tylenol"}},
		{Canonical: "amoxicillin", Variants: []string{"amoxil", "trimox"}},
		{Canonical: "augmentin"},
		{Canonical: "metformin", Variants: []string{"glucophage"}},
		{Canonical: "lisinopril", Variants: []string{"prinivil", "zestril"}},
		{Canonical: "atorvastatin", Variants: []string{"lipitor"}},
		{Canonical: "omeprazole", Variants: []string{"prilosec"}},
		{Canonical: "pand"},
		{Canonical: "simvastatin", Variants: []string{"zocor"}},
		{Canonical: "metoprolol", Variants: []string{"lopressor", "toprol"}},
		{Canonical: "losartan", Variants: []string{"cozaar"}},
		{Canonical: "amlodipine", Variants: []string{"norvasc"}},
		{Canonical: "hydrochlorothiazide", Variants: []string{"hctz", "microzide"}},
		{Canonical: "pantoprazole", Variants: []string{"protonix"}},
		{Canonical: "carvedilol", Variants: []string{"coreg"}},
		{Canonical: "furosemide", Variants: []string{"lasix"}},
		{Canonical: "spironolactone", Variants: []string{"aldactone"}},
		{Canonical: "tramadol", Variants: []string{"ultram"}},
		{Canonical: "gabapentin", Variants: []string{"neurontin"}},
		{Canonical: "duloxetine", Variants: []string{"cymbalta"}},
		{Canonical: "enzoflam"},
		{Canonical: "hexigel"},
		{Canonical: "calpol", Variants: []string{"syp calpol"}},
		{Canonical: "delcon", Variants: []string{"syp delcon"}},
		{Canonical: "levolin", Variants: []string{"syp levolin"}},
		{Canonical: "meftol", Variants: []string{"meftol-p", "syp meftol", "syp meftol-p"}},
		{Canonical: "abciximab", Variants: []string{"tab abciximab"}},
		{Canonical: "vomilast", Variants: []string{"tab vomilast"}},
		{Canonical: "zoclar", Variants: []string{"cap zoclar"}},
		{Canonical: "gestakind", Variants: []string{"tab gestakind"}},
	})
}

// ---------------------------------------------------------------------------
// Frequency lexicon
// ---------------------------------------------------------------------------

// FrequencyEntry maps one canonical frequency label to the phrases,
// abbreviations, and numeric codes that express it.
type FrequencyEntry struct {
	Label    string
	Variants []string
}

// FrequencyLexicon resolves frequency-bearing text to canonical labels.
// Variant matching is longest-variant-first across all entries so that
// "three times daily" can never be claimed by the bare "daily" variant of a
// shorter entry; ties keep entry order, making lookups deterministic.
// Immutable after construction.
type FrequencyLexicon struct {
	entries []FrequencyEntry

	// scan is every (variant, label) pair ordered by descending variant
	// length, entry order on ties.
	scan []variantRef
}

type variantRef struct {
	variant string
	label   string
}

// NewFrequencyLexicon builds a lexicon from the given entries, lowercasing
// variants and precomputing the longest-first scan order.
func NewFrequencyLexicon(entries []FrequencyEntry) *FrequencyLexicon {
	lex := &FrequencyLexicon{entries: make([]FrequencyEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Label == "" {
			continue
		}
		variants := make([]string, 0, len(e.Variants))
		for _, v := range e.Variants {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				variants = append(variants, v)
			}
		}
		lex.entries = append(lex.entries, FrequencyEntry{Label: e.Label, Variants: variants})
	}

	for _, e := range lex.entries {
		for _, v := range e.Variants {
			lex.scan = append(lex.scan, variantRef{variant: v, label: e.Label})
		}
	}
	sort.SliceStable(lex.scan, func(i, j int) bool {
		return len(lex.scan[i].variant) > len(lex.scan[j].variant)
	})

	return lex
}

// Entries returns the lexicon's entries in load order.
func (l *FrequencyLexicon) Entries() []FrequencyEntry {
	return l.entries
}

// LabelFor returns the canonical label of the longest variant contained in
// text (case-insensitive).  The boolean is false when no variant matches.
func (l *FrequencyLexicon) LabelFor(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, ref := range l.scan {
		if strings.Contains(lower, ref.variant) {
			return ref.label, true
		}
	}
	return "", false
}

// NewDefaultFrequencyLexicon returns the built-in frequency table: plain
// English, Latin medical abbreviations with and without dots, every-N-hours
// phrasings, and the numeric morning-afternoon-night codes used on Indian
// prescriptions.
func NewDefaultFrequencyLexicon() *FrequencyLexicon {
	return NewFrequencyLexicon([]FrequencyEntry{
		{Label: "once daily (morning)", Variants: []string{
			"once daily", "once a day", "qd", "q.d.", "daily", "every 24 hours",
			"1-0-0", "1 0 0", "1 morning", "morning",
		}},
		{Label: "twice daily (morning & night)", Variants: []string{
			"twice daily", "twice a day", "bid", "b.i.d.", "every 12 hours",
			"1-0-1", "1 0 1", "1 morning, 1 night", "morning and night",
		}},
		{Label: "three times daily (morning, afternoon & night)", Variants: []string{
			"three times daily", "three times a day", "tid", "t.i.d.",
			"every 8 hours", "1-1-1", "1 1 1",
		}},
		{Label: "twice daily (morning & afternoon)", Variants: []string{"1-1-0", "1 1 0"}},
		{Label: "twice daily (afternoon & night)", Variants: []string{"0-1-1", "0 1 1"}},
		{Label: "four times daily", Variants: []string{
			"four times daily", "four times a day", "qid", "q.i.d.", "every 6 hours",
		}},
		{Label: "every 6 hours", Variants: []string{"q6h", "q.6.h."}},
		{Label: "every 8 hours", Variants: []string{"q8h", "q.8.h."}},
		{Label: "every 12 hours", Variants: []string{"q12h", "q.12.h."}},
		{Label: "as needed", Variants: []string{"as needed", "prn", "p.r.n.", "when required", "sos"}},
		{Label: "before meals", Variants: []string{"before meals", "ac", "a.c.", "ante cibum"}},
		{Label: "after meals", Variants: []string{"after meals", "pc", "p.c.", "post cibum", "after food"}},
		{Label: "at bedtime", Variants: []string{"at bedtime", "hs", "h.s.", "hora somni", "before sleep"}},
		{Label: "three times daily", Variants: []string{"tds", "t.d.s."}},
		{Label: "once daily (night)", Variants: []string{"1 night", "night"}},
	})
}
