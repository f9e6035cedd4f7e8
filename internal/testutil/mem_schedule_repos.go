package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// MemReminderRepo is a thread-safe in-memory schedule.Repository.
type MemReminderRepo struct {
	mu    sync.Mutex
	byID  map[common.ID]schedule.Reminder
	order []common.ID
}

// NewMemReminderRepo creates an empty repository.
func NewMemReminderRepo() *MemReminderRepo {
	return &MemReminderRepo{byID: make(map[common.ID]schedule.Reminder)}
}

func (r *MemReminderRepo) Save(_ context.Context, rem *schedule.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(rem)
}

func (r *MemReminderRepo) saveLocked(rem *schedule.Reminder) error {
	if _, ok := r.byID[rem.ID]; ok {
		return pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "duplicate reminder id").
			WithDetail("id=" + string(rem.ID))
	}
	r.byID[rem.ID] = *rem
	r.order = append(r.order, rem.ID)
	return nil
}

func (r *MemReminderRepo) SaveBatch(_ context.Context, reminders []*schedule.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// All-or-nothing, like the transactional SQL implementation.
	for _, rem := range reminders {
		if _, ok := r.byID[rem.ID]; ok {
			return pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "duplicate reminder id in batch").
				WithDetail("id=" + string(rem.ID))
		}
	}
	for _, rem := range reminders {
		if err := r.saveLocked(rem); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemReminderRepo) FindByID(_ context.Context, id common.ID) (*schedule.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrCodeReminderNotFound, "reminder not found").
			WithDetail("id=" + string(id))
	}
	return &rem, nil
}

func (r *MemReminderRepo) FindActiveByUser(_ context.Context, userID common.UserID) ([]*schedule.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filterLocked(func(rem schedule.Reminder) bool {
		return rem.UserID == userID && rem.IsActive
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClockTime < out[j].ClockTime })
	return out, nil
}

func (r *MemReminderRepo) FindActiveByMedication(_ context.Context, medicationID common.ID) ([]*schedule.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filterLocked(func(rem schedule.Reminder) bool {
		return rem.MedicationID == medicationID && rem.IsActive
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClockTime < out[j].ClockTime })
	return out, nil
}

func (r *MemReminderRepo) FindAllActive(_ context.Context) ([]*schedule.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(func(rem schedule.Reminder) bool { return rem.IsActive }), nil
}

func (r *MemReminderRepo) filterLocked(keep func(schedule.Reminder) bool) []*schedule.Reminder {
	out := make([]*schedule.Reminder, 0)
	for _, id := range r.order {
		rem := r.byID[id]
		if keep(rem) {
			cp := rem
			out = append(out, &cp)
		}
	}
	return out
}

func (r *MemReminderRepo) UpdateLastTaken(_ context.Context, id common.ID, takenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.byID[id]
	if !ok {
		return pkgerrors.New(pkgerrors.ErrCodeReminderNotFound, "reminder not found").
			WithDetail("id=" + string(id))
	}
	t := takenAt
	rem.LastTaken = &t
	rem.UpdatedAt = time.Now().UTC()
	r.byID[id] = rem
	return nil
}

func (r *MemReminderRepo) DeactivateByMedication(_ context.Context, medicationID common.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		rem := r.byID[id]
		if rem.MedicationID == medicationID && rem.IsActive {
			rem.IsActive = false
			rem.UpdatedAt = time.Now().UTC()
			r.byID[id] = rem
		}
	}
	return nil
}

// MemDoseLogRepo is a thread-safe in-memory schedule.DoseLogRepository.
type MemDoseLogRepo struct {
	mu      sync.Mutex
	entries []schedule.DoseLog
}

// NewMemDoseLogRepo creates an empty repository.
func NewMemDoseLogRepo() *MemDoseLogRepo {
	return &MemDoseLogRepo{}
}

func (r *MemDoseLogRepo) Save(_ context.Context, l *schedule.DoseLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *l)
	return nil
}

// FindByUser returns the user's logs ordered by TakenAt descending.  A
// non-positive limit means no cap.
func (r *MemDoseLogRepo) FindByUser(_ context.Context, userID common.UserID, limit int) ([]*schedule.DoseLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*schedule.DoseLog, 0)
	for i := range r.entries {
		if r.entries[i].UserID == userID {
			cp := r.entries[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemDoseLogRepo) CountByMedicationSince(_ context.Context, medicationID common.ID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.entries {
		if r.entries[i].MedicationID == medicationID && !r.entries[i].TakenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Len reports the total number of stored dose logs.
func (r *MemDoseLogRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
