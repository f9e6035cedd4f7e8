package schedule

import (
	"context"
	"strconv"
	"sync"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ─────────────────────────────────────────────────────────────────────────────
// ActiveReminderStore
// ─────────────────────────────────────────────────────────────────────────────

// ActiveReminderStore holds the reminders dispatched but not yet
// acknowledged, keyed by user for frontend polling, plus the per-day
// sent-dedupe set the dispatch loop consults before firing.  The store is
// bounded by construction: the in-memory implementation below evicts by
// insertion age, the redis implementation by TTL.
//
// Date strings are "2006-01-02" calendar days; the dedupe contract is "at
// most one dispatch per reminder per date".
type ActiveReminderStore interface {
	// Add appends a dispatched reminder to its user's pending list.
	// Returns ErrCodeReminderStoreFull when the store's total capacity is
	// exhausted; callers should log and continue.
	Add(ctx context.Context, reminder schedtypes.ActiveReminder) error

	// ListByUser returns the user's pending reminders, oldest first.
	ListByUser(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error)

	// ClearMedication drops the user's pending reminders for one
	// medication, typically after a dose is logged.
	ClearMedication(ctx context.Context, userID common.UserID, medicationID common.ID) error

	// MarkSent records that the reminder fired on the given date.
	MarkSent(ctx context.Context, reminderID common.ID, date string) error

	// WasSent reports whether the reminder already fired on the given date.
	WasSent(ctx context.Context, reminderID common.ID, date string) (bool, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory implementation
// ─────────────────────────────────────────────────────────────────────────────

const (
	// defaultStoreCapacity bounds total pending entries across all users
	// when the caller passes a non-positive capacity.
	defaultStoreCapacity = 10000

	// perUserPendingCap bounds one user's pending list.  A user who never
	// acknowledges loses their oldest entries first, and can never starve
	// the rest of the store.
	perUserPendingCap = 32
)

// memoryActiveReminderStore is the single-process store used by tests, the
// one-shot CLI, and deployments without redis.
type memoryActiveReminderStore struct {
	mu       sync.Mutex
	capacity int
	total    int
	byUser   map[common.UserID][]schedtypes.ActiveReminder

	sentDate string
	sent     map[common.ID]struct{}
}

// NewMemoryActiveReminderStore builds an in-memory store bounded to capacity
// total pending entries.
func NewMemoryActiveReminderStore(capacity int) ActiveReminderStore {
	if capacity <= 0 {
		capacity = defaultStoreCapacity
	}
	return &memoryActiveReminderStore{
		capacity: capacity,
		byUser:   make(map[common.UserID][]schedtypes.ActiveReminder),
		sent:     make(map[common.ID]struct{}),
	}
}

func (s *memoryActiveReminderStore) Add(_ context.Context, reminder schedtypes.ActiveReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[reminder.UserID]
	if len(list) >= perUserPendingCap {
		list = list[1:]
		s.total--
	}
	if s.total >= s.capacity {
		return errors.New(errors.ErrCodeReminderStoreFull, "active reminder store is full").
			WithDetail("capacity=" + strconv.Itoa(s.capacity))
	}
	s.byUser[reminder.UserID] = append(list, reminder)
	s.total++
	return nil
}

func (s *memoryActiveReminderStore) ListByUser(_ context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedtypes.ActiveReminder(nil), s.byUser[userID]...), nil
}

func (s *memoryActiveReminderStore) ClearMedication(_ context.Context, userID common.UserID, medicationID common.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	kept := list[:0]
	for _, ar := range list {
		if ar.MedicationID != medicationID {
			kept = append(kept, ar)
		}
	}
	s.total -= len(list) - len(kept)
	if len(kept) == 0 {
		delete(s.byUser, userID)
		return nil
	}
	s.byUser[userID] = kept
	return nil
}

func (s *memoryActiveReminderStore) MarkSent(_ context.Context, reminderID common.ID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDate(date)
	s.sent[reminderID] = struct{}{}
	return nil
}

func (s *memoryActiveReminderStore) WasSent(_ context.Context, reminderID common.ID, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date != s.sentDate {
		return false, nil
	}
	_, ok := s.sent[reminderID]
	return ok, nil
}

// rollDate resets the sent set when the calendar day changes.  Only the
// current date's dedupe keys matter, so the set stays bounded by the number
// of active reminders.
func (s *memoryActiveReminderStore) rollDate(date string) {
	if date != s.sentDate {
		s.sentDate = date
		s.sent = make(map[common.ID]struct{})
	}
}
