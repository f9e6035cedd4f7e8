package repositories

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository is the PostgreSQL implementation of the user domain's
// Repository interface.  User IDs come from the caller's identity header, so
// writes are upserts keyed on that external ID rather than inserts of a
// generated one.
type UserRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository constructs a ready-to-use UserRepository.
func NewUserRepository(pool *pgxpool.Pool, logger logging.Logger) *UserRepository {
	return &UserRepository{pool: pool, logger: logger}
}

// Upsert inserts the profile or, when the ID already exists, refreshes its
// mutable fields.  created_at survives the update so provisioning time is
// never lost.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	r.logger.Debug("upserting user", logging.String("id", string(u.ID)))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, timezone, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			timezone     = EXCLUDED.timezone,
			updated_at   = EXCLUDED.updated_at`,
		u.ID, u.DisplayName, u.Timezone, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert user", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert user")
	}
	return nil
}

// FindByID loads one profile.
func (r *UserRepository) FindByID(ctx context.Context, id common.UserID) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, timezone, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeUserNotFound, "user not found")
		}
		r.logger.Error("failed to scan user row", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan user row")
	}
	return &u, nil
}
