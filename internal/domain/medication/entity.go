// Package medication implements the medication bounded context for the
// MedRx-Intelligence platform: the Medication aggregate, its repository
// port, and the domain service that enforces the per-user uniqueness
// invariant.  Business rules about what a stored medication may look like
// live here; extraction concerns live in internal/intelligence and
// persistence concerns in internal/infrastructure.
package medication

import (
	"strings"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ─────────────────────────────────────────────────────────────────────────────
// Medication aggregate
// ─────────────────────────────────────────────────────────────────────────────

// minNameLength is the shortest medication name the platform accepts.
// Anything shorter is either an OCR artifact or a unit token that slipped
// through the extractor's candidate filters.
const minNameLength = 2

// Medication is the aggregate root of this bounded context: one drug a user
// is (or was) taking, with the dosing details recovered from a prescription
// or entered manually.
//
// Invariant enforced by the Service and the persistence layer together: at
// most one active Medication per (UserID, Name, Dosage, Frequency) tuple,
// with Name compared case-insensitively.
type Medication struct {
	ID           common.ID                 `json:"id"`
	UserID       common.UserID             `json:"user_id"`
	Name         string                    `json:"name"`
	Dosage       string                    `json:"dosage"`
	Frequency    string                    `json:"frequency"`
	Duration     string                    `json:"duration"`
	Instructions string                    `json:"instructions,omitempty"`
	Confidence   float64                   `json:"confidence"`
	Source       medtypes.ExtractionSource `json:"source"`
	IsActive     bool                      `json:"is_active"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// NewMedication constructs an active Medication for userID with a fresh
// platform ID.  Empty dosing fields are normalized to the extraction
// sentinels so that every stored medication carries a displayable value in
// each column.  Confidence is clamped to [0, 1].
//
// Returns a typed AppError (ErrCodeBadRequest, ErrCodeMedicationNameInvalid)
// when the inputs cannot form a valid aggregate.
func NewMedication(
	userID common.UserID,
	name string,
	dosage string,
	frequency string,
	duration string,
	instructions string,
	confidence float64,
	source medtypes.ExtractionSource,
) (*Medication, error) {
	if strings.TrimSpace(string(userID)) == "" {
		return nil, errors.InvalidParam("user id must not be empty")
	}

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	if strings.TrimSpace(dosage) == "" {
		dosage = medtypes.UnknownDosage
	}
	if strings.TrimSpace(frequency) == "" {
		frequency = medtypes.DefaultFrequency
	}
	if strings.TrimSpace(duration) == "" {
		duration = medtypes.DefaultDuration
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if source == "" {
		source = medtypes.SourceManual
	}

	now := time.Now().UTC()
	return &Medication{
		ID:           common.NewID(),
		UserID:       userID,
		Name:         name,
		Dosage:       dosage,
		Frequency:    frequency,
		Duration:     duration,
		Instructions: strings.TrimSpace(instructions),
		Confidence:   confidence,
		Source:       source,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewMedicationFromRecord constructs a Medication from a merged extraction
// record, preserving the record's confidence and provenance.  Used by the
// prescription digitization flow after the entity merger has produced its
// final per-drug records.
func NewMedicationFromRecord(userID common.UserID, rec medtypes.MedicationRecord) (*Medication, error) {
	return NewMedication(
		userID,
		rec.Name,
		rec.Dosage,
		rec.Frequency,
		rec.Duration,
		rec.Instructions,
		rec.Confidence,
		rec.Source,
	)
}

// validateName rejects names the extractor's own filters would have dropped:
// empty, too short, or purely numeric tokens.
func validateName(name string) error {
	if name == "" {
		return errors.New(errors.ErrCodeMedicationNameInvalid, "medication name must not be empty")
	}
	if len(name) < minNameLength {
		return errors.New(errors.ErrCodeMedicationNameInvalid, "medication name too short").
			WithDetail("name=" + name)
	}
	if isNumeric(name) {
		return errors.New(errors.ErrCodeMedicationNameInvalid, "medication name must not be purely numeric").
			WithDetail("name=" + name)
	}
	return nil
}

// isNumeric reports whether s consists solely of ASCII digits, dots, and
// dashes (e.g. "625", "1-0-1").
func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return len(s) > 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregate behaviour
// ─────────────────────────────────────────────────────────────────────────────

// Deactivate marks the medication as no longer taken.  Deactivating an
// already-inactive medication is an error so that callers can distinguish a
// repeat request from a first one.
func (m *Medication) Deactivate() error {
	if !m.IsActive {
		return errors.New(errors.ErrCodeMedicationInactive, "medication is already inactive").
			WithDetail("id=" + string(m.ID))
	}
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// BelongsTo reports whether the medication is owned by userID.
func (m *Medication) BelongsTo(userID common.UserID) bool {
	return m.UserID == userID
}

// DedupeKey returns the tuple that identifies this medication for the
// one-active-record invariant: lowercased name, dosage, and frequency.
func (m *Medication) DedupeKey() string {
	return strings.ToLower(m.Name) + "|" + m.Dosage + "|" + m.Frequency
}

// ToDTO converts the aggregate to its cross-layer representation.
func (m *Medication) ToDTO() medtypes.MedicationDTO {
	return medtypes.MedicationDTO{
		ID:           m.ID,
		UserID:       m.UserID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		Frequency:    m.Frequency,
		Duration:     m.Duration,
		Instructions: m.Instructions,
		Confidence:   m.Confidence,
		Source:       m.Source,
		Active:       m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
