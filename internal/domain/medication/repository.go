package medication

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// Repository is the persistence port for the Medication aggregate.
// Implementations live in internal/infrastructure/database; tests use an
// in-memory mock.
//
// Lookup semantics:
//   - FindByID returns ErrCodeMedicationNotFound when no row matches.
//   - FindActiveByUser returns active medications only, newest first, and an
//     empty slice (not an error) when the user has none.
//   - FindByUserNameDosageFreq matches Name case-insensitively against the
//     user's ACTIVE medications and returns (nil, nil) on no match: absence
//     is the expected answer during dedupe, not a failure.
type Repository interface {
	// Save persists a new medication.
	Save(ctx context.Context, m *Medication) error

	// FindByID loads one medication by its platform ID.
	FindByID(ctx context.Context, id common.ID) (*Medication, error)

	// FindActiveByUser lists the user's active medications, newest first.
	FindActiveByUser(ctx context.Context, userID common.UserID) ([]*Medication, error)

	// FindByUserNameDosageFreq looks up the user's active medication with
	// the given (name, dosage, frequency) tuple, if any.
	FindByUserNameDosageFreq(ctx context.Context, userID common.UserID, name, dosage, frequency string) (*Medication, error)

	// Update persists field changes to an existing medication.
	Update(ctx context.Context, m *Medication) error

	// Deactivate clears the active flag on a stored medication.
	Deactivate(ctx context.Context, id common.ID) error
}
