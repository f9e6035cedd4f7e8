package repositories

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// MedicationRepository
// ─────────────────────────────────────────────────────────────────────────────

// MedicationRepository is the PostgreSQL implementation of the medication
// domain's Repository interface.
type MedicationRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ medication.Repository = (*MedicationRepository)(nil)

// NewMedicationRepository constructs a ready-to-use MedicationRepository.
func NewMedicationRepository(pool *pgxpool.Pool, logger logging.Logger) *MedicationRepository {
	return &MedicationRepository{pool: pool, logger: logger}
}

// Save persists a new medication row.  A collision on the active-regimen
// unique index maps to ErrCodeMedicationAlreadyExists; the service layer
// pre-checks duplicates, so hitting the index means two requests raced.
func (r *MedicationRepository) Save(ctx context.Context, m *medication.Medication) error {
	r.logger.Debug("saving medication",
		logging.String("id", string(m.ID)),
		logging.String("user_id", string(m.UserID)))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO medications (
			id, user_id, name, dosage, frequency, duration,
			instructions, confidence, source, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.UserID, m.Name, m.Dosage, m.Frequency, m.Duration,
		m.Instructions, m.Confidence, m.Source, m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_medications_active_regimen") {
			return errors.Wrap(err, errors.ErrCodeMedicationAlreadyExists, "medication already registered")
		}
		r.logger.Error("failed to insert medication", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert medication")
	}
	return nil
}

// FindByID loads one medication by its platform ID.
func (r *MedicationRepository) FindByID(ctx context.Context, id common.ID) (*medication.Medication, error) {
	return r.scanMedication(r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, dosage, frequency, duration,
		       instructions, confidence, source, is_active, created_at, updated_at
		FROM medications WHERE id = $1`, id))
}

// FindActiveByUser lists the user's active medications, newest first.
func (r *MedicationRepository) FindActiveByUser(ctx context.Context, userID common.UserID) ([]*medication.Medication, error) {
	r.logger.Debug("listing active medications", logging.String("user_id", string(userID)))

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, dosage, frequency, duration,
		       instructions, confidence, source, is_active, created_at, updated_at
		FROM medications
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		r.logger.Error("failed to query medications", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query medications")
	}
	defer rows.Close()

	return r.scanMedications(rows)
}

// FindByUserNameDosageFreq looks up the user's active medication matching the
// (name, dosage, frequency) tuple.  Name matching is case-insensitive.  No
// match returns (nil, nil): absence is the expected answer during dedupe.
func (r *MedicationRepository) FindByUserNameDosageFreq(ctx context.Context, userID common.UserID, name, dosage, frequency string) (*medication.Medication, error) {
	m, err := r.scanMedication(r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, dosage, frequency, duration,
		       instructions, confidence, source, is_active, created_at, updated_at
		FROM medications
		WHERE user_id = $1 AND is_active
		  AND LOWER(name) = LOWER($2) AND dosage = $3 AND frequency = $4`,
		userID, name, dosage, frequency))
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeMedicationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// Update persists field changes to an existing medication.
func (r *MedicationRepository) Update(ctx context.Context, m *medication.Medication) error {
	r.logger.Debug("updating medication", logging.String("id", string(m.ID)))

	tag, err := r.pool.Exec(ctx, `
		UPDATE medications SET
			name = $2, dosage = $3, frequency = $4, duration = $5,
			instructions = $6, confidence = $7, source = $8, is_active = $9,
			created_at = $10, updated_at = $11
		WHERE id = $1`,
		m.ID, m.Name, m.Dosage, m.Frequency, m.Duration,
		m.Instructions, m.Confidence, m.Source, m.IsActive,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to update medication", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update medication")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeMedicationNotFound, "medication not found")
	}
	return nil
}

// Deactivate clears the active flag on a stored medication.
func (r *MedicationRepository) Deactivate(ctx context.Context, id common.ID) error {
	r.logger.Debug("deactivating medication", logging.String("id", string(id)))

	tag, err := r.pool.Exec(ctx, `
		UPDATE medications SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to deactivate medication", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to deactivate medication")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeMedicationNotFound, "medication not found")
	}
	return nil
}

// scanMedication scans a single row into a Medication.
func (r *MedicationRepository) scanMedication(row pgx.Row) (*medication.Medication, error) {
	var m medication.Medication
	err := row.Scan(
		&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.Frequency, &m.Duration,
		&m.Instructions, &m.Confidence, &m.Source, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeMedicationNotFound, "medication not found")
		}
		r.logger.Error("failed to scan medication row", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan medication row")
	}
	return &m, nil
}

// scanMedications drains rows into a slice of Medications.
func (r *MedicationRepository) scanMedications(rows pgx.Rows) ([]*medication.Medication, error) {
	out := make([]*medication.Medication, 0)
	for rows.Next() {
		m, err := r.scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate medication rows")
	}
	return out, nil
}
