package schedule

import (
	"context"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// Repository is the persistence port for Reminder rows.  Implementations
// live in internal/infrastructure/database.
//
// FindByID returns ErrCodeReminderNotFound when no row matches; the list
// methods return empty slices, not errors, when nothing matches.
type Repository interface {
	// Save persists a single reminder.
	Save(ctx context.Context, r *Reminder) error

	// SaveBatch persists all reminders of one materialization atomically.
	SaveBatch(ctx context.Context, reminders []*Reminder) error

	// FindByID loads one reminder.
	FindByID(ctx context.Context, id common.ID) (*Reminder, error)

	// FindActiveByUser lists a user's active reminders ordered by clock time.
	FindActiveByUser(ctx context.Context, userID common.UserID) ([]*Reminder, error)

	// FindActiveByMedication lists the active reminders of one medication.
	FindActiveByMedication(ctx context.Context, medicationID common.ID) ([]*Reminder, error)

	// FindAllActive lists every active reminder; the dispatch loop scans
	// this each tick.
	FindAllActive(ctx context.Context) ([]*Reminder, error)

	// UpdateLastTaken stamps the slot with the time of a logged dose.
	UpdateLastTaken(ctx context.Context, id common.ID, takenAt time.Time) error

	// DeactivateByMedication retires all reminders of a medication, used
	// when the medication itself is deactivated.
	DeactivateByMedication(ctx context.Context, medicationID common.ID) error
}

// DoseLogRepository is the persistence port for DoseLog rows.
type DoseLogRepository interface {
	// Save persists a dose log entry.
	Save(ctx context.Context, l *DoseLog) error

	// FindByUser lists a user's dose logs, newest first, capped at limit.
	FindByUser(ctx context.Context, userID common.UserID, limit int) ([]*DoseLog, error)

	// CountByMedicationSince counts doses logged for a medication at or
	// after since, for compliance reporting.
	CountByMedicationSince(ctx context.Context, medicationID common.ID, since time.Time) (int, error)
}
