package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// DoseLogRepository
// ─────────────────────────────────────────────────────────────────────────────

// DoseLogRepository is the PostgreSQL implementation of the schedule
// domain's DoseLogRepository interface.  Dose logs are append-only; there is
// no update or delete path.
type DoseLogRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ schedule.DoseLogRepository = (*DoseLogRepository)(nil)

// NewDoseLogRepository constructs a ready-to-use DoseLogRepository.
func NewDoseLogRepository(pool *pgxpool.Pool, logger logging.Logger) *DoseLogRepository {
	return &DoseLogRepository{pool: pool, logger: logger}
}

// Save persists a dose log entry.
func (r *DoseLogRepository) Save(ctx context.Context, l *schedule.DoseLog) error {
	r.logger.Debug("saving dose log",
		logging.String("id", string(l.ID)),
		logging.String("medication_id", string(l.MedicationID)))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO dose_logs (id, medication_id, user_id, taken_at, scheduled_time, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		l.ID, l.MedicationID, l.UserID, l.TakenAt, l.ScheduledTime, l.Notes,
	)
	if err != nil {
		r.logger.Error("failed to insert dose log", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert dose log")
	}
	return nil
}

// FindByUser lists a user's dose logs, newest first.  A positive limit caps
// the result; zero or negative means unbounded.
func (r *DoseLogRepository) FindByUser(ctx context.Context, userID common.UserID, limit int) ([]*schedule.DoseLog, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.pool.Query(ctx, `
			SELECT id, medication_id, user_id, taken_at, scheduled_time, notes
			FROM dose_logs
			WHERE user_id = $1
			ORDER BY taken_at DESC, id
			LIMIT $2`, userID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, medication_id, user_id, taken_at, scheduled_time, notes
			FROM dose_logs
			WHERE user_id = $1
			ORDER BY taken_at DESC, id`, userID)
	}
	if err != nil {
		r.logger.Error("failed to query dose logs", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query dose logs")
	}
	defer rows.Close()

	out := make([]*schedule.DoseLog, 0)
	for rows.Next() {
		var l schedule.DoseLog
		if err := rows.Scan(&l.ID, &l.MedicationID, &l.UserID, &l.TakenAt, &l.ScheduledTime, &l.Notes); err != nil {
			r.logger.Error("failed to scan dose log row", logging.Err(err))
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan dose log row")
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate dose log rows")
	}
	return out, nil
}

// CountByMedicationSince counts doses logged for a medication at or after
// since.  Compliance reporting divides this by the expected dose count.
func (r *DoseLogRepository) CountByMedicationSince(ctx context.Context, medicationID common.ID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM dose_logs
		WHERE medication_id = $1 AND taken_at >= $2`,
		medicationID, since,
	).Scan(&count)
	if err != nil {
		r.logger.Error("failed to count dose logs", logging.Err(err))
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count dose logs")
	}
	return count, nil
}
