package rxextractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// Surface patterns
// ---------------------------------------------------------------------------

// nameShape is the token run accepted as a medication name: a word starting
// with a letter, optionally continued by hyphen- or space-joined words.
// Matching is case-insensitive overall; capitalisation is enforced only where
// a name must be recovered without any anchoring token (dosage-first).
const nameShape = `[A-Z][a-z]+(?:[-\s][A-Z][a-z]+)*`

// formShape covers dispensed-form markers.  Abbreviations require the
// trailing dot ("Tab.") to avoid claiming ordinary words.
const formShape = `(?:Tab\.|Caps\.|Syr\.|Inj\.|Tablet|Capsule|Syrup|Injection)`

// surfacePattern is one prioritised layout rule.  Capture groups are
// normalised across patterns: group 1 is the name, groups 2 and 3 (when
// present) are the numeric dosage and unit.
type surfacePattern struct {
	re        *regexp.Regexp
	hasDosage bool
}

// surfacePatterns are tried in order: form-prefixed layouts first (the
// strongest signal that a token is a drug name), bare name+dosage layouts
// next, and the dosage-first layout last.  Across all patterns, only the
// first match for a given name is kept.
var surfacePatterns = []surfacePattern{
	// Tab. Augmentin 625mg
	{regexp.MustCompile(`(?i)\b` + formShape + `\s*(` + nameShape + `)\s*(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\b`), true},
	// Tab. Enzoflam  (form marker but no strength on the line)
	{regexp.MustCompile(`(?i)\b` + formShape + `\s*(` + nameShape + `)\b`), false},
	// Amoxicillin 500 mg capsule
	{regexp.MustCompile(`(?i)\b(` + nameShape + `)\s*(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\s*(?:tablet|capsule|pill|dose|tab|caps)\b`), true},
	// Metformin 500mg twice
	{regexp.MustCompile(`(?i)\b(` + nameShape + `)\s*(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\s*(?:once|twice|thrice|daily|bid|tid|qid)\b`), true},
	// Augmentin 625mg 1-0-1
	{regexp.MustCompile(`(?i)\b(` + nameShape + `)\s*(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\s*(?:1-0-1|1-0-0|1-1-1|0-0-1|1-1-0)\b`), true},
	// Augmentin 625mg
	{regexp.MustCompile(`(?i)\b(` + nameShape + `)\s*(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\b`), true},
}

// dosageFirstRe matches the inverted "625 mg Augmentin" layout.  The name is
// not part of the match; it is recovered by a bounded forward scan.
var dosageFirstRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\b`)

// dosageFirstNameRe recovers a capitalised word run after a dosage-first
// match.  Deliberately case-sensitive: without a form marker or preceding
// name, capitalisation is the only evidence a token is a name at all.
var dosageFirstNameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:[-\s][A-Z][a-z]+)*`)

// dosageFirstLookahead bounds the forward scan for a name after a
// dosage-first match.
const dosageFirstLookahead = 50

// ---------------------------------------------------------------------------
// Pattern-based extraction
// ---------------------------------------------------------------------------

// extractByPattern scans text with the prioritised surface patterns and
// returns one candidate per distinct name found.  A match whose name is
// empty, shorter than three characters, or purely numeric is discarded; a
// dosage-first match that yields no recoverable name is discarded rather
// than kept under a placeholder.
func (e *extractorImpl) extractByPattern(text string) []*medication.MedicationCandidate {
	var candidates []*medication.MedicationCandidate
	seen := make(map[string]bool)

	emit := func(name, dosage string) {
		name = strings.TrimSpace(name)
		if len(name) < 3 || isNumeric(name) {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true

		freq := frequencyNear(text, name, e.freqLex)
		candidates = append(candidates, &medication.MedicationCandidate{
			Name:         titleCase(name),
			Dosage:       dosage,
			Frequency:    freq,
			Duration:     durationNear(text, name),
			Instructions: ExpandInstructions(freq),
			Confidence:   patternConfidence,
			Source:       medication.SourcePatternBased,
		})
	}

	for _, sp := range surfacePatterns {
		for _, m := range sp.re.FindAllStringSubmatch(text, -1) {
			dosage := "1 tablet"
			if sp.hasDosage {
				dosage = fmt.Sprintf("%s %s", m[2], strings.ToLower(m[3]))
			}
			emit(m[1], dosage)
		}
	}

	// Dosage-first layout: recover the trailing name or drop the match.
	for _, loc := range dosageFirstRe.FindAllStringSubmatchIndex(text, -1) {
		end := loc[1]
		limit := end + dosageFirstLookahead
		if limit > len(text) {
			limit = len(text)
		}
		name := dosageFirstNameRe.FindString(text[end:limit])
		if name == "" {
			continue
		}
		num := text[loc[2]:loc[3]]
		unit := strings.ToLower(text[loc[4]:loc[5]])
		emit(name, fmt.Sprintf("%s %s", num, unit))
	}

	return candidates
}

// isNumeric reports whether s consists solely of ASCII digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
