package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

const (
	// storePerUserCap mirrors the in-memory store's per-user bound: the
	// oldest pending alerts are evicted first, and one silent user cannot
	// grow without limit.
	storePerUserCap = 32

	// storePendingTTL reaps a user's pending list two days after the last
	// dispatch touched it.
	storePendingTTL = 48 * time.Hour

	// storeSentTTL keeps sent-dedupe flags long enough to cover the day
	// they guard plus clock skew between worker replicas.
	storeSentTTL = 48 * time.Hour
)

// ReminderStore is the redis-backed pending-reminder store shared by worker
// replicas.  Pending alerts live in one sorted set per user, scored by
// enqueue time so listing is oldest first; sent-dedupe flags are plain keys
// scoped by calendar date.  Both are TTL-bounded, so the store needs no
// global capacity and Add never reports it full.
//
// Re-adding an alert with identical content refreshes its position instead
// of duplicating it; the per-date dedupe flags make that a non-event in
// practice.
type ReminderStore struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	perUserCap int
	pendingTTL time.Duration
	sentTTL    time.Duration
}

var _ schedule.ActiveReminderStore = (*ReminderStore)(nil)

// ReminderStoreOption customises a store built by NewReminderStore.
type ReminderStoreOption func(*ReminderStore)

func WithStorePrefix(prefix string) ReminderStoreOption {
	return func(s *ReminderStore) { s.prefix = prefix }
}

func WithPerUserCap(n int) ReminderStoreOption {
	return func(s *ReminderStore) { s.perUserCap = n }
}

func WithPendingTTL(ttl time.Duration) ReminderStoreOption {
	return func(s *ReminderStore) { s.pendingTTL = ttl }
}

func WithSentTTL(ttl time.Duration) ReminderStoreOption {
	return func(s *ReminderStore) { s.sentTTL = ttl }
}

// NewReminderStore builds a ReminderStore over client.
func NewReminderStore(client *Client, log logging.Logger, opts ...ReminderStoreOption) *ReminderStore {
	s := &ReminderStore{
		client:     client,
		logger:     log,
		prefix:     "medrx:",
		perUserCap: storePerUserCap,
		pendingTTL: storePendingTTL,
		sentTTL:    storeSentTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReminderStore) alertsKey(userID common.UserID) string {
	return s.prefix + "alerts:" + string(userID)
}

func (s *ReminderStore) sentKey(reminderID common.ID, date string) string {
	return s.prefix + "sent:" + date + ":" + string(reminderID)
}

// Add appends the reminder to its user's pending set, trims the set to the
// per-user cap, and refreshes the set's TTL, in one transaction.
func (s *ReminderStore) Add(ctx context.Context, reminder schedtypes.ActiveReminder) error {
	payload, err := json.Marshal(reminder)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeSerialization, "failed to marshal pending reminder")
	}

	key := s.alertsKey(reminder.UserID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(payload),
	})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(s.perUserCap + 1)))
	pipe.Expire(ctx, key, s.pendingTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to store pending reminder")
	}
	return nil
}

// ListByUser returns the user's pending reminders, oldest first.  Entries
// that no longer decode are dropped with a warning rather than poisoning
// the whole list.
func (s *ReminderStore) ListByUser(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error) {
	vals, err := s.client.ZRange(ctx, s.alertsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to list pending reminders")
	}

	out := make([]schedtypes.ActiveReminder, 0, len(vals))
	for _, raw := range vals {
		var ar schedtypes.ActiveReminder
		if err := json.Unmarshal([]byte(raw), &ar); err != nil {
			s.logger.Warn("Dropping undecodable pending reminder",
				logging.String("user_id", string(userID)), logging.Err(err))
			continue
		}
		out = append(out, ar)
	}
	return out, nil
}

// ClearMedication drops the user's pending reminders for one medication.
func (s *ReminderStore) ClearMedication(ctx context.Context, userID common.UserID, medicationID common.ID) error {
	key := s.alertsKey(userID)
	vals, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to list pending reminders")
	}

	var stale []interface{}
	for _, raw := range vals {
		var ar schedtypes.ActiveReminder
		if err := json.Unmarshal([]byte(raw), &ar); err != nil {
			continue
		}
		if ar.MedicationID == medicationID {
			stale = append(stale, raw)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.client.ZRem(ctx, key, stale...).Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to clear pending reminders")
	}
	return nil
}

// MarkSent records that the reminder fired on the given date.
func (s *ReminderStore) MarkSent(ctx context.Context, reminderID common.ID, date string) error {
	if err := s.client.Set(ctx, s.sentKey(reminderID, date), "1", s.sentTTL).Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to mark reminder sent")
	}
	return nil
}

// WasSent reports whether the reminder already fired on the given date.
func (s *ReminderStore) WasSent(ctx context.Context, reminderID common.ID, date string) (bool, error) {
	n, err := s.client.Exists(ctx, s.sentKey(reminderID, date)).Result()
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to check sent flag")
	}
	return n > 0, nil
}
