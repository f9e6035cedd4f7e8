// Package medication defines the medication-domain Data Transfer Objects,
// enumerations, and request/response structures used across every layer of the
// MedRx-Intelligence platform.  No domain logic lives here — only plain data
// types that are safe to import from any layer without creating circular
// dependencies.
package medication

import (
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// ExtractionSource — which strategy produced a medication candidate
// ─────────────────────────────────────────────────────────────────────────────

// ExtractionSource identifies the extraction strategy that produced a
// MedicationCandidate.  It is carried through merging and persistence so that
// downstream consumers can weigh records by provenance.
type ExtractionSource string

const (
	// SourceRuleBased marks candidates anchored on a known lexicon entry.
	// Lexicon matches are the most trustworthy output of the pipeline.
	SourceRuleBased ExtractionSource = "rule_based"

	// SourcePatternBased marks candidates recovered by layout patterns
	// (form prefixes, dosage-first lines) without a lexicon anchor.
	SourcePatternBased ExtractionSource = "pattern_based"

	// SourceManual marks records entered or corrected by a user rather than
	// extracted from prescription text.
	SourceManual ExtractionSource = "manual"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel field values
// ─────────────────────────────────────────────────────────────────────────────

// Sentinel values substituted when a field cannot be recovered from the text.
// Downstream merge scoring treats a sentinel as "absent", so a candidate that
// carries real values always outranks one that carries sentinels.
const (
	// UnknownDosage is the placeholder dosage for candidates whose strength
	// could not be located near the medication name.
	UnknownDosage = "Unknown dosage"

	// DefaultFrequency is the fallback frequency label when no schedule
	// notation was found.
	DefaultFrequency = "daily"

	// DefaultDuration is the fallback treatment duration when no course
	// length was found.
	DefaultDuration = "7 days"
)

// ─────────────────────────────────────────────────────────────────────────────
// MedicationCandidate — raw extraction pipeline output
// ─────────────────────────────────────────────────────────────────────────────

// MedicationCandidate is a single medication mention recovered from
// prescription text before merging and persistence.  Several candidates may
// describe the same drug (one per strategy that fired); the entity merger
// collapses them into one record per drug.
type MedicationCandidate struct {
	// Name is the medication name as recovered from the text, typically
	// title-cased.  Never empty for a valid candidate.
	Name string `json:"name"`

	// Dosage is the strength with unit (e.g., "625 mg", "5 ml") or the
	// UnknownDosage sentinel.
	Dosage string `json:"dosage"`

	// Frequency is the human-readable schedule label (e.g., "twice daily
	// (morning & night)") or the DefaultFrequency sentinel.
	Frequency string `json:"frequency"`

	// Duration is the treatment length (e.g., "5 days", "1 week") or the
	// DefaultDuration sentinel.
	Duration string `json:"duration"`

	// Instructions carries free-text administration notes (e.g., "after
	// food"); may be empty.
	Instructions string `json:"instructions,omitempty"`

	// Confidence is the strategy-assigned confidence in [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	// Source records which strategy produced this candidate.
	Source ExtractionSource `json:"source"`
}

// ─────────────────────────────────────────────────────────────────────────────
// MedicationRecord — merged extraction output
// ─────────────────────────────────────────────────────────────────────────────

// MedicationRecord is the post-merge result: one entry per distinct drug found
// in a single extraction run, identified by its lowercased name within that
// run.  Confidence and Source are retained as provenance from the winning
// candidate.
type MedicationRecord struct {
	Name         string           `json:"name"`
	Dosage       string           `json:"dosage"`
	Frequency    string           `json:"frequency"`
	Duration     string           `json:"duration"`
	Instructions string           `json:"instructions,omitempty"`
	Confidence   float64          `json:"confidence"`
	Source       ExtractionSource `json:"source"`
}

// ─────────────────────────────────────────────────────────────────────────────
// MedicationDTO — cross-layer representation of a stored medication
// ─────────────────────────────────────────────────────────────────────────────

// MedicationDTO is the canonical medication representation passed between the
// application, interface, and client layers.
type MedicationDTO struct {
	ID           common.ID        `json:"id"`
	UserID       common.UserID    `json:"user_id"`
	Name         string           `json:"name"`
	Dosage       string           `json:"dosage"`
	Frequency    string           `json:"frequency"`
	Duration     string           `json:"duration"`
	Instructions string           `json:"instructions,omitempty"`
	Confidence   float64          `json:"confidence"`
	Source       ExtractionSource `json:"source"`
	Active       bool             `json:"active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Digitization request / response types
// ─────────────────────────────────────────────────────────────────────────────

// DigitizeRequest is the input DTO for prescription digitization.  Text is the
// OCR output (or typed prescription text) to process; ScanID optionally links
// the request to a previously uploaded prescription scan.
type DigitizeRequest struct {
	Text   string `json:"text"`
	ScanID string `json:"scan_id,omitempty"`
}

// DigitizeResponse is the output DTO for prescription digitization.
//
// Degraded reports that the input failed the prescription-likeness gate and
// the pipeline ran in best-effort mode: Medications may be empty or partial,
// and callers should surface the low QualityScore to the user instead of
// treating the result as authoritative.
type DigitizeResponse struct {
	Medications      []MedicationDTO `json:"medications"`
	MedicationsFound int             `json:"medications_found"`
	QualityScore     float64         `json:"quality_score"`
	Degraded         bool            `json:"degraded"`
	ScanID           string          `json:"scan_id,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
}
