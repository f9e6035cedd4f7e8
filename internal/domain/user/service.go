package user

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// Service owns lazy provisioning and profile updates.  There is no explicit
// registration: the first operation that needs a user row creates one.
type Service struct {
	repo   Repository
	logger logging.Logger
}

// NewService creates the user domain service.  Pass logging.NewNopLogger()
// in tests.
func NewService(repo Repository, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// EnsureUser returns the profile for id, provisioning a default one when
// none exists yet.  Write paths call this before persisting rows that
// reference the user.
func (s *Service) EnsureUser(ctx context.Context, id common.UserID) (*User, error) {
	if id == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}

	u, err := s.repo.FindByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.ErrCodeUserNotFound) {
		return nil, err
	}

	u, err = NewUser(id, "", "")
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		s.logger.Error("failed to provision user",
			logging.String("user_id", string(id)),
			logging.Err(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to provision user")
	}

	s.logger.Info("provisioned user", logging.String("user_id", string(id)))
	return u, nil
}

// GetProfile loads an existing profile.  Unlike EnsureUser it does not
// create one; read paths should see the truth.
func (s *Service) GetProfile(ctx context.Context, id common.UserID) (*User, error) {
	if id == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile applies a partial profile update and returns the new state.
// The row is provisioned first if needed, so a fresh user can set a timezone
// in their very first call.
func (s *Service) UpdateProfile(ctx context.Context, id common.UserID, displayName, timezone string) (*User, error) {
	u, err := s.EnsureUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.UpdateProfile(displayName, timezone); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		s.logger.Error("failed to update user profile",
			logging.String("user_id", string(id)),
			logging.Err(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to update user profile")
	}

	s.logger.Info("updated user profile",
		logging.String("user_id", string(id)),
		logging.String("timezone", u.Timezone))
	return u, nil
}
