package schedule

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Service — schedule domain service
// ─────────────────────────────────────────────────────────────────────────────

// Service turns stored medications into concrete reminder rows and answers
// reminder queries.  The frequency arithmetic itself lives in the pure
// functions of scheduler.go; Service adds persistence.
type Service struct {
	repo   Repository
	logger logging.Logger
}

// NewService creates the schedule domain service.  Pass
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

// MaterializeReminders creates one reminder row per clock slot of the
// medication's frequency.  As-needed frequencies schedule nothing and
// return an empty slice; that is a success, not an error.
func (s *Service) MaterializeReminders(
	ctx context.Context,
	userID common.UserID,
	medicationID common.ID,
	frequency string,
) ([]*Reminder, error) {
	times := TimesFor(frequency)
	if len(times) == 0 {
		s.logger.Debug("frequency schedules no reminders",
			logging.String("medication_id", string(medicationID)),
			logging.String("frequency", frequency))
		return []*Reminder{}, nil
	}

	reminders := make([]*Reminder, 0, len(times))
	for _, clock := range times {
		r, err := NewReminder(userID, medicationID, clock)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}

	if err := s.repo.SaveBatch(ctx, reminders); err != nil {
		s.logger.Error("failed to save reminders",
			logging.String("medication_id", string(medicationID)),
			logging.Int("count", len(reminders)),
			logging.Err(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to save reminders")
	}

	s.logger.Info("materialized reminders",
		logging.String("user_id", string(userID)),
		logging.String("medication_id", string(medicationID)),
		logging.String("frequency", frequency),
		logging.Int("count", len(reminders)))
	return reminders, nil
}

// ListUserReminders returns the user's active reminders ordered by clock
// time.
func (s *Service) ListUserReminders(ctx context.Context, userID common.UserID) ([]*Reminder, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	reminders, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to list reminders")
	}
	return reminders, nil
}

// DeactivateForMedication retires every reminder of a medication, called
// when the medication is deactivated.
func (s *Service) DeactivateForMedication(ctx context.Context, medicationID common.ID) error {
	if err := medicationID.Validate(); err != nil {
		return pkgerrors.InvalidParam("invalid medication id").WithCause(err)
	}
	if err := s.repo.DeactivateByMedication(ctx, medicationID); err != nil {
		s.logger.Error("failed to deactivate reminders",
			logging.String("medication_id", string(medicationID)),
			logging.Err(err))
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to deactivate reminders")
	}
	s.logger.Info("deactivated reminders for medication",
		logging.String("medication_id", string(medicationID)))
	return nil
}
