package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// ReminderRepository
// ─────────────────────────────────────────────────────────────────────────────

// ReminderRepository is the PostgreSQL implementation of the schedule
// domain's Repository interface.
type ReminderRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ schedule.Repository = (*ReminderRepository)(nil)

// NewReminderRepository constructs a ready-to-use ReminderRepository.
func NewReminderRepository(pool *pgxpool.Pool, logger logging.Logger) *ReminderRepository {
	return &ReminderRepository{pool: pool, logger: logger}
}

// Save persists a single reminder row.
func (r *ReminderRepository) Save(ctx context.Context, rem *schedule.Reminder) error {
	r.logger.Debug("saving reminder",
		logging.String("id", string(rem.ID)),
		logging.String("clock_time", rem.ClockTime))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminders (
			id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rem.ID, rem.MedicationID, rem.UserID, rem.ClockTime,
		rem.IsActive, rem.LastTaken, rem.CreatedAt, rem.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert reminder", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert reminder")
	}
	return nil
}

// SaveBatch persists all reminders of one materialization inside a single
// transaction, so a medication never ends up with half its slots.
func (r *ReminderRepository) SaveBatch(ctx context.Context, reminders []*schedule.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	r.logger.Debug("saving reminder batch", logging.Int("count", len(reminders)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin transaction", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, rem := range reminders {
		_, err := tx.Exec(ctx, `
			INSERT INTO reminders (
				id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rem.ID, rem.MedicationID, rem.UserID, rem.ClockTime,
			rem.IsActive, rem.LastTaken, rem.CreatedAt, rem.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("failed to insert reminder in batch",
				logging.String("id", string(rem.ID)),
				logging.Err(err))
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert reminder")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("failed to commit reminder batch", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit reminder batch")
	}
	return nil
}

// FindByID loads one reminder.
func (r *ReminderRepository) FindByID(ctx context.Context, id common.ID) (*schedule.Reminder, error) {
	return r.scanReminder(r.pool.QueryRow(ctx, `
		SELECT id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
		FROM reminders WHERE id = $1`, id))
}

// FindActiveByUser lists a user's active reminders ordered by clock time.
func (r *ReminderRepository) FindActiveByUser(ctx context.Context, userID common.UserID) ([]*schedule.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
		FROM reminders
		WHERE user_id = $1 AND is_active
		ORDER BY clock_time, created_at`, userID)
	if err != nil {
		r.logger.Error("failed to query reminders", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query reminders")
	}
	defer rows.Close()

	return r.scanReminders(rows)
}

// FindActiveByMedication lists the active reminders of one medication.
func (r *ReminderRepository) FindActiveByMedication(ctx context.Context, medicationID common.ID) ([]*schedule.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
		FROM reminders
		WHERE medication_id = $1 AND is_active
		ORDER BY clock_time, created_at`, medicationID)
	if err != nil {
		r.logger.Error("failed to query reminders", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query reminders")
	}
	defer rows.Close()

	return r.scanReminders(rows)
}

// FindAllActive lists every active reminder.  The dispatch loop scans this
// on each tick, so the query leans on the partial active index.
func (r *ReminderRepository) FindAllActive(ctx context.Context) ([]*schedule.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, medication_id, user_id, clock_time, is_active, last_taken, created_at, updated_at
		FROM reminders
		WHERE is_active
		ORDER BY clock_time, user_id`)
	if err != nil {
		r.logger.Error("failed to scan active reminders", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query active reminders")
	}
	defer rows.Close()

	return r.scanReminders(rows)
}

// UpdateLastTaken stamps the slot with the time of a logged dose.
func (r *ReminderRepository) UpdateLastTaken(ctx context.Context, id common.ID, takenAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET last_taken = $2, updated_at = NOW()
		WHERE id = $1`, id, takenAt)
	if err != nil {
		r.logger.Error("failed to update last taken", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update reminder")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeReminderNotFound, "reminder not found")
	}
	return nil
}

// DeactivateByMedication retires all reminders of a medication.  Zero
// affected rows is not an error; as-needed medications have no slots.
func (r *ReminderRepository) DeactivateByMedication(ctx context.Context, medicationID common.ID) error {
	r.logger.Debug("deactivating reminders", logging.String("medication_id", string(medicationID)))

	_, err := r.pool.Exec(ctx, `
		UPDATE reminders SET is_active = FALSE, updated_at = NOW()
		WHERE medication_id = $1 AND is_active`, medicationID)
	if err != nil {
		r.logger.Error("failed to deactivate reminders", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to deactivate reminders")
	}
	return nil
}

// scanReminder scans a single row into a Reminder.
func (r *ReminderRepository) scanReminder(row pgx.Row) (*schedule.Reminder, error) {
	var rem schedule.Reminder
	err := row.Scan(
		&rem.ID, &rem.MedicationID, &rem.UserID, &rem.ClockTime,
		&rem.IsActive, &rem.LastTaken, &rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeReminderNotFound, "reminder not found")
		}
		r.logger.Error("failed to scan reminder row", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan reminder row")
	}
	return &rem, nil
}

// scanReminders drains rows into a slice of Reminders.
func (r *ReminderRepository) scanReminders(rows pgx.Rows) ([]*schedule.Reminder, error) {
	out := make([]*schedule.Reminder, 0)
	for rows.Next() {
		rem, err := r.scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate reminder rows")
	}
	return out, nil
}
