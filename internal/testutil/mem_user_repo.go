package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// MemUserRepo is a thread-safe in-memory user.Repository.
type MemUserRepo struct {
	mu   sync.Mutex
	byID map[common.UserID]user.User
}

// NewMemUserRepo creates an empty repository.
func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{byID: make(map[common.UserID]user.User)}
}

func (r *MemUserRepo) Upsert(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = *u
	return nil
}

func (r *MemUserRepo) FindByID(_ context.Context, id common.UserID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrCodeUserNotFound, "user not found").
			WithDetail("user_id=" + string(id))
	}
	return &u, nil
}

// Len reports the number of stored users.
func (r *MemUserRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
