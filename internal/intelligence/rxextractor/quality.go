package rxextractor

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Input quality gating
// ---------------------------------------------------------------------------

// medicalKeywords are tokens whose presence indicates the OCR stage produced
// usable prescription text.  Each distinct keyword found adds a fixed bonus
// on top of the length-based base score.
var medicalKeywords = []string{
	"tab", "tablet", "cap", "capsule", "mg", "ml", "gm", "gram",
	"daily", "twice", "thrice", "morning", "evening", "night",
	"before", "after", "meal", "food", "rx", "prescription",
	"dose", "dosage", "frequency", "duration", "days", "weeks",
	"months", "take", "adv", "advice",
}

// nonPrescriptionKeywords flag document types that routinely reach the scan
// intake but carry no medication content, such as dental-clinic letterheads.
var nonPrescriptionKeywords = []string{
	"dental", "teeth", "whitening", "implant", "dentistry", "clinic",
	"smile", "designing", "tooth", "gum", "oral", "cavity",
}

// prescriptionKeywords counter-weigh the non-prescription list when
// classifying a document.
var prescriptionKeywords = []string{
	"rx", "prescription", "tab", "tablet", "cap", "capsule",
	"mg", "ml", "daily", "twice", "thrice", "morning", "evening",
	"before", "after", "meal", "dose", "take", "medicine",
}

const qualityKeywordBonus = 50.0

// ScoreTextQuality rates raw OCR output.  Anything under ten characters
// scores zero; otherwise the score starts at the trimmed length, gains a
// bonus per medical keyword present, and is halved when more than 30% of the
// characters are neither alphanumeric nor whitespace (a strong sign the OCR
// engine produced noise).
func ScoreTextQuality(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 10 {
		return 0
	}

	score := float64(len(trimmed))
	lower := strings.ToLower(text)
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			score += qualityKeywordBonus
		}
	}

	special := 0
	total := 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total > 0 && float64(special)/float64(total) > 0.3 {
		score *= 0.5
	}
	return score
}

// IsPrescriptionText classifies whether text plausibly came from a
// prescription.  A document is rejected only when non-prescription keywords
// clearly dominate; ambiguous input defaults to acceptance so that extraction
// gets a chance to run.
func IsPrescriptionText(text string) bool {
	lower := strings.ToLower(text)

	nonRx := 0
	for _, kw := range nonPrescriptionKeywords {
		if strings.Contains(lower, kw) {
			nonRx++
		}
	}
	rx := 0
	for _, kw := range prescriptionKeywords {
		if strings.Contains(lower, kw) {
			rx++
		}
	}

	// Reject only on clear dominance; everything else is worth a pass
	// through extraction.
	return !(nonRx > rx && nonRx > 2)
}
