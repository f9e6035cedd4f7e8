package rxextractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// Context window location
// ---------------------------------------------------------------------------

// Window sizes in characters around a located mention.  Dosage sits tight to
// the drug name on a prescription line; frequency and duration trail further
// behind it ("x 5 days" at line end), so their windows reach wider.
const (
	dosageWindowBefore    = 50
	dosageWindowAfter     = 150
	frequencyWindowBefore = 100
	frequencyWindowAfter  = 200
	durationWindowBefore  = 100
	durationWindowAfter   = 200
)

// fuzzyContextWords is the word radius used when a mention can only be
// located fuzzily: the window is rebuilt from whole words around the matched
// token instead of character offsets.
const fuzzyContextWords = 3

// contextWindow returns the slice of text around mention.  The mention is
// located by case-insensitive substring search first; if that fails, by fuzzy
// word-level matching to tolerate OCR garbling of the name itself.  The
// boolean is false when the mention cannot be located at all.
func contextWindow(text, mention string, before, after int) (string, bool) {
	if text == "" || mention == "" {
		return "", false
	}

	pos := strings.Index(strings.ToLower(text), strings.ToLower(mention))
	if pos >= 0 {
		start := pos - before
		if start < 0 {
			start = 0
		}
		end := pos + len(mention) + after
		if end > len(text) {
			end = len(text)
		}
		return text[start:end], true
	}

	// Fuzzy fallback: scan word-by-word for a token that plausibly is the
	// garbled mention, then take a few words either side of it.
	words := tokenise(text)
	for i, w := range words {
		if !fuzzyMatch(w.text, mention) {
			continue
		}
		lo := i - fuzzyContextWords
		if lo < 0 {
			lo = 0
		}
		hi := i + fuzzyContextWords + 1
		if hi > len(words) {
			hi = len(words)
		}
		parts := make([]string, 0, hi-lo)
		for _, ww := range words[lo:hi] {
			parts = append(parts, ww.text)
		}
		return strings.Join(parts, " "), true
	}

	return "", false
}

// ---------------------------------------------------------------------------
// Dosage sub-extractor
// ---------------------------------------------------------------------------

var (
	// dosageUnitRe matches an explicit strength: number plus unit.
	dosageUnitRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|ml|g|mcg|units?)\b`)

	// dosageGarbledRe tolerates OCR-corrupted units where "mg" lost a letter:
	// a 2-4 digit number followed by a lone m or g still reads as milligrams.
	dosageGarbledRe = regexp.MustCompile(`(?i)\b(\d{2,4})\s*(?:mg|ml|m|g)\b`)

	// bareNumberRe finds candidate bare strengths for the common-value check.
	bareNumberRe = regexp.MustCompile(`\b(\d{2,4})\b`)
)

// commonDosageValues are strengths frequent enough on prescriptions that a
// bare number matching one of them is taken as a milligram dose when no
// unit survived OCR.
var commonDosageValues = map[int]bool{
	625: true, 500: true, 250: true, 125: true, 100: true, 75: true,
	50: true, 40: true, 25: true, 20: true, 10: true, 5: true,
}

// dosageFromWindow extracts a dosage string from a context window: explicit
// number+unit first, then the garbled-unit form, then bare common strength
// values.  Falls back to the "Unknown dosage" sentinel.
func dosageFromWindow(window string) string {
	if m := dosageUnitRe.FindStringSubmatch(window); m != nil {
		return fmt.Sprintf("%s %s", m[1], strings.ToLower(m[2]))
	}
	if m := dosageGarbledRe.FindStringSubmatch(window); m != nil {
		return fmt.Sprintf("%s mg", m[1])
	}
	for _, m := range bareNumberRe.FindAllStringSubmatch(window, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if commonDosageValues[n] {
			return fmt.Sprintf("%d mg", n)
		}
	}
	return medication.UnknownDosage
}

// dosageNear locates mention in text and extracts a dosage from the
// surrounding window.
func dosageNear(text, mention string) string {
	window, ok := contextWindow(text, mention, dosageWindowBefore, dosageWindowAfter)
	if !ok {
		return medication.UnknownDosage
	}
	return dosageFromWindow(window)
}

// frequencyNear locates mention in text and derives the frequency label for
// the surrounding window.
func frequencyNear(text, mention string, lex *FrequencyLexicon) string {
	window, ok := contextWindow(text, mention, frequencyWindowBefore, frequencyWindowAfter)
	if !ok {
		return medication.DefaultFrequency
	}
	return frequencyFromWindow(window, lex)
}

// ---------------------------------------------------------------------------
// Duration sub-extractor
// ---------------------------------------------------------------------------

// durationPattern pairs a course-length regex with its canonical unit name.
// Patterns are tried in order; single-letter abbreviations are restricted to
// "d" because a bare "m" or "g" collides with dosage units in the same
// window.
type durationPattern struct {
	re   *regexp.Regexp
	unit string
}

var durationPatterns = []durationPattern{
	{regexp.MustCompile(`(?i)\b(\d+)\s*(days?|d)\b`), "day"},
	{regexp.MustCompile(`(?i)\b(\d+)\s*(weeks?|wks?|wk)\b`), "week"},
	{regexp.MustCompile(`(?i)\b(\d+)\s*(months?|mos?|mo)\b`), "month"},
	{regexp.MustCompile(`(?i)\b(\d+)\s*(years?|yrs?|yr)\b`), "year"},
}

// durationFromWindow extracts a treatment duration ("5 days", "1 week") from
// a context window, falling back to the "7 days" sentinel.
func durationFromWindow(window string) string {
	for _, dp := range durationPatterns {
		m := dp.re.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		unit := dp.unit
		if n != 1 {
			unit += "s"
		}
		return fmt.Sprintf("%d %s", n, unit)
	}
	return medication.DefaultDuration
}

// durationNear locates mention in text and extracts a duration from the
// surrounding window.
func durationNear(text, mention string) string {
	window, ok := contextWindow(text, mention, durationWindowBefore, durationWindowAfter)
	if !ok {
		return medication.DefaultDuration
	}
	return durationFromWindow(window)
}
