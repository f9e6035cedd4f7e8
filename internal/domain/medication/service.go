package medication

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ─────────────────────────────────────────────────────────────────────────────
// Service — medication domain service
// ─────────────────────────────────────────────────────────────────────────────

// Service coordinates the Medication aggregate and the Repository port.
// It owns the uniqueness invariant: at most one active medication per
// (user, name, dosage, frequency) tuple.  Structural validation lives in
// the aggregate factories; Service methods retrieve, decide, and persist.
//
// Service is consumed by:
//   - internal/application/prescription (digitization flow)
//   - internal/application/adherence    (dose logging and compliance)
//   - internal/interfaces/http/handlers (REST API)
type Service struct {
	repo   Repository
	logger logging.Logger
}

// NewService creates the medication domain service.  Pass
// logging.NewNopLogger() in tests.
func NewService(repo Repository, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// RegisterExtracted
// ─────────────────────────────────────────────────────────────────────────────

// RegisterExtracted persists the merged extraction records for a user,
// skipping any record whose (name, dosage, frequency) tuple already has an
// active medication.  A skipped record is not an error: re-uploading the
// same prescription is an expected user action and must be idempotent.
//
// Records that fail aggregate validation (the extractor's filters should
// have caught them, but stored data must not depend on that) are skipped
// with a warning.  Repository failures abort the whole call.
//
// Returns the newly created medications, in input order, plus the number of
// records skipped as duplicates.
func (s *Service) RegisterExtracted(
	ctx context.Context,
	userID common.UserID,
	records []medtypes.MedicationRecord,
) ([]*Medication, int, error) {
	if userID == "" {
		return nil, 0, pkgerrors.InvalidParam("user id must not be empty")
	}

	created := make([]*Medication, 0, len(records))
	skipped := 0

	for _, rec := range records {
		m, err := NewMedicationFromRecord(userID, rec)
		if err != nil {
			s.logger.Warn("dropping invalid extraction record",
				logging.String("user_id", string(userID)),
				logging.String("name", rec.Name),
				logging.Err(err))
			continue
		}

		existing, err := s.repo.FindByUserNameDosageFreq(ctx, userID, m.Name, m.Dosage, m.Frequency)
		if err != nil {
			return nil, 0, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "medication dedupe lookup failed")
		}
		if existing != nil {
			skipped++
			s.logger.Debug("skipping duplicate medication",
				logging.String("user_id", string(userID)),
				logging.String("name", m.Name))
			continue
		}

		if err := s.repo.Save(ctx, m); err != nil {
			s.logger.Error("failed to save medication",
				logging.String("user_id", string(userID)),
				logging.String("name", m.Name),
				logging.Err(err))
			return nil, 0, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to save medication")
		}
		created = append(created, m)
	}

	s.logger.Info("registered extracted medications",
		logging.String("user_id", string(userID)),
		logging.Int("created", len(created)),
		logging.Int("skipped", skipped))
	return created, skipped, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RegisterManual
// ─────────────────────────────────────────────────────────────────────────────

// RegisterManual creates a medication the user typed in themselves.  Unlike
// RegisterExtracted, a duplicate here is a conflict the caller must see:
// the user asked for a specific row to exist and it already does.
func (s *Service) RegisterManual(
	ctx context.Context,
	userID common.UserID,
	name, dosage, frequency, duration, instructions string,
) (*Medication, error) {
	m, err := NewMedication(userID, name, dosage, frequency, duration, instructions, 1.0, medtypes.SourceManual)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByUserNameDosageFreq(ctx, userID, m.Name, m.Dosage, m.Frequency)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "medication dedupe lookup failed")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMedicationAlreadyExists, "an active medication with this name, dosage and frequency already exists").
			WithDetail("name=" + m.Name)
	}

	if err := s.repo.Save(ctx, m); err != nil {
		s.logger.Error("failed to save medication",
			logging.String("user_id", string(userID)),
			logging.String("name", m.Name),
			logging.Err(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to save medication")
	}

	s.logger.Info("registered manual medication",
		logging.String("user_id", string(userID)),
		logging.String("name", m.Name))
	return m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetMedication loads one medication and verifies ownership.  A medication
// owned by another user yields ErrCodeMedicationOwnerMismatch, not a
// not-found, so that API handlers can translate it to 403.
func (s *Service) GetMedication(ctx context.Context, userID common.UserID, id common.ID) (*Medication, error) {
	if err := id.Validate(); err != nil {
		return nil, pkgerrors.InvalidParam("invalid medication id").WithCause(err)
	}

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.BelongsTo(userID) {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMedicationOwnerMismatch, "medication belongs to a different user").
			WithDetail("id=" + string(id))
	}
	return m, nil
}

// ListActive returns the user's active medications, newest first.
func (s *Service) ListActive(ctx context.Context, userID common.UserID) ([]*Medication, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	meds, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to list medications")
	}
	return meds, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DeactivateMedication
// ─────────────────────────────────────────────────────────────────────────────

// DeactivateMedication retires a medication the user no longer takes.  The
// aggregate enforces the single-deactivation rule; the repository persists
// the flag change.
func (s *Service) DeactivateMedication(ctx context.Context, userID common.UserID, id common.ID) error {
	m, err := s.GetMedication(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := m.Deactivate(); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		s.logger.Error("failed to deactivate medication",
			logging.String("medication_id", string(id)),
			logging.Err(err))
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to deactivate medication")
	}

	s.logger.Info("deactivated medication",
		logging.String("user_id", string(userID)),
		logging.String("medication_id", string(id)))
	return nil
}
