package rxextractor

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Text normalization
// ---------------------------------------------------------------------------

// Normalize cleans raw OCR text for extraction: Unicode NFC normalisation,
// then every character outside the allow-list
// [A-Za-z0-9 .,:;()\[\]{}/\-+=%] is replaced with a space, runs of whitespace
// collapse to a single space, and the result is trimmed.
//
// Digits are never altered.  OCR confusion pairs like 0/O or 1/l are left as
// recognised: a "correction" adjacent to a numeral would corrupt dosage
// values, which is worse than tolerating a garbled name.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if !allowedRune(r) || unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimSpace(b.String())
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case ' ', '.', ',', ':', ';', '(', ')', '[', ']', '{', '}', '/', '-', '+', '=', '%':
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Tokenisation
// ---------------------------------------------------------------------------

type wordToken struct {
	text  string
	start int
}

// tokenise splits text into word tokens with their byte offsets.  Hyphens and
// apostrophes are word characters so that "meftol-p" stays one token.
func tokenise(text string) []wordToken {
	var tokens []wordToken
	inWord := false
	wordStart := 0
	for i, r := range text {
		isWordChar := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\''
		if isWordChar {
			if !inWord {
				wordStart = i
				inWord = true
			}
		} else if inWord {
			tokens = append(tokens, wordToken{text: text[wordStart:i], start: wordStart})
			inWord = false
		}
	}
	if inWord {
		tokens = append(tokens, wordToken{text: text[wordStart:], start: wordStart})
	}
	return tokens
}

// ---------------------------------------------------------------------------
// Fuzzy word matching
// ---------------------------------------------------------------------------

// fuzzyMatch reports whether word plausibly is an OCR-garbled rendering of
// target.  Both are compared lowercased.  Words shorter than four characters
// must match exactly; longer words match on edit distance ≤ 1, or on a shared
// prefix of at least five characters when the lengths are within three.
func fuzzyMatch(word, target string) bool {
	word = strings.ToLower(word)
	target = strings.ToLower(target)
	if word == target {
		return true
	}
	if len(word) < 4 || len(target) < 4 {
		return false
	}

	diff := len(word) - len(target)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 && editDistance(word, target) <= 1 {
		return true
	}
	if diff <= 3 && commonPrefixLen(word, target) >= 5 {
		return true
	}
	return false
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// editDistance computes the Levenshtein distance between a and b using the
// two-row dynamic programming form.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// titleCase upper-cases the first letter of every alphabetic run and
// lower-cases the rest, so "augmentin" becomes "Augmentin", "meftol-p"
// becomes "Meftol-P" and "PanD" becomes "Pand".  Used to give extracted
// names a single display form regardless of how the scan rendered them.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}
