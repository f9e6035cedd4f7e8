package user

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// Repository is the persistence port for User rows.
//
// Upsert inserts or fully replaces the profile keyed by ID; FindByID returns
// ErrCodeUserNotFound when no row matches.
type Repository interface {
	Upsert(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id common.UserID) (*User, error)
}
