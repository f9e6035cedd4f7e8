// Package reminderloop runs the periodic scan that turns due reminder slots
// into dispatched alerts.  Each cycle loads the active reminders, keeps the
// ones whose clock time falls inside the due window, drops anything already
// taken or already alerted today, and dispatches the rest: a reminder.due
// event on the bus plus an entry in the active-reminder store the frontend
// polls.  Dispatch is at-least-once; consumers de-duplicate on
// (reminder, date).
package reminderloop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// Locker serializes dispatch cycles across worker replicas so each due slot
// is dispatched by exactly one of them per tick.  Implemented by the redis
// mutex; single-process deployments run without one.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// EventPublisher publishes reminder.due events.  Implemented by the kafka
// producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// Metrics records dispatch telemetry.
type Metrics interface {
	RecordCycle(ctx context.Context, scanned, dispatched int, durationMs float64)
	RecordDispatchError(ctx context.Context, stage string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCycle(context.Context, int, int, float64) {}
func (noopMetrics) RecordDispatchError(context.Context, string)   {}

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

const (
	defaultCheckInterval = 30 * time.Second
	defaultDueWindow     = time.Minute

	dateLayout  = "2006-01-02"
	eventSource = "reminder-dispatcher"
)

// ErrAlreadyRunning is returned by Start when the loop is live.
var ErrAlreadyRunning = pkgerrors.New(pkgerrors.ErrCodeConflict, "reminder dispatcher is already running")

// Config tunes the dispatch loop.
type Config struct {
	// CheckInterval is the tick period between dispatch cycles.
	CheckInterval time.Duration

	// DueWindow is how far a reminder's clock time may sit from the tick's
	// wall-clock time and still count as due.  It must cover at least one
	// CheckInterval or slots can fall between ticks.
	DueWindow time.Duration
}

func (c *Config) setDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.DueWindow <= 0 {
		c.DueWindow = defaultDueWindow
	}
}

// Dispatcher owns the dispatch loop.  Construct with NewDispatcher, drive
// with Start/Stop, or call DispatchOnce directly for a single cycle.
type Dispatcher struct {
	reminders   schedule.Repository
	medications medication.Repository
	store       schedule.ActiveReminderStore

	locker  Locker
	events  EventPublisher
	metrics Metrics
	cfg     Config
	logger  logging.Logger

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// DispatcherOption configures optional collaborators.
type DispatcherOption func(*Dispatcher)

// WithLocker serializes cycles across replicas.
func WithLocker(l Locker) DispatcherOption {
	return func(d *Dispatcher) { d.locker = l }
}

// WithEventPublisher enables reminder.due events on the bus.
func WithEventPublisher(p EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.events = p }
}

// WithMetrics wires dispatch telemetry.
func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher assembles the dispatch loop.  The reminder and medication
// repositories and the active-reminder store are mandatory; lock, events and
// metrics are wired through options.
func NewDispatcher(
	reminders schedule.Repository,
	medications medication.Repository,
	store schedule.ActiveReminderStore,
	cfg Config,
	logger logging.Logger,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if reminders == nil || medications == nil {
		return nil, pkgerrors.InvalidParam("reminder and medication repositories are required")
	}
	if store == nil {
		return nil, pkgerrors.InvalidParam("active reminder store is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cfg.setDefaults()

	d := &Dispatcher{
		reminders:   reminders,
		medications: medications,
		store:       store,
		metrics:     noopMetrics{},
		cfg:         cfg,
		logger:      logger.Named("reminderloop"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Start launches the dispatch loop.  The first cycle runs immediately so a
// restarted worker does not sit out a full interval.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.loop(ctx)

	d.logger.Info("reminder dispatcher started",
		logging.Duration("check_interval", d.cfg.CheckInterval),
		logging.Duration("due_window", d.cfg.DueWindow))
	return nil
}

// Stop halts the loop and waits for the in-flight cycle to finish.  Safe to
// call when not running.
func (d *Dispatcher) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	close(d.stop)
	<-d.done
	d.logger.Info("reminder dispatcher stopped")
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	d.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

func (d *Dispatcher) runCycle(ctx context.Context) {
	if err := d.DispatchOnce(ctx, time.Now()); err != nil {
		d.logger.Error("dispatch cycle failed", logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatch cycle
// ─────────────────────────────────────────────────────────────────────────────

// DispatchOnce runs one dispatch cycle against the given wall-clock instant.
// The serve loop calls it on every tick; the worker CLI can invoke a single
// cycle directly.
func (d *Dispatcher) DispatchOnce(ctx context.Context, now time.Time) error {
	start := time.Now()

	if d.locker != nil {
		ok, err := d.locker.TryLock(ctx)
		if err != nil {
			d.metrics.RecordDispatchError(ctx, "lock")
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to acquire dispatch lock")
		}
		if !ok {
			d.logger.Debug("another replica holds the dispatch lock")
			return nil
		}
		defer func() {
			if err := d.locker.Unlock(ctx); err != nil {
				d.logger.Warn("failed to release dispatch lock", logging.Err(err))
			}
		}()
	}

	active, err := d.reminders.FindAllActive(ctx)
	if err != nil {
		d.metrics.RecordDispatchError(ctx, "scan")
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to scan active reminders")
	}

	date := now.Format(dateLayout)
	dispatched := 0
	medCache := make(map[common.ID]*medication.Medication)

	for _, r := range active {
		if !r.DueAt(now, d.cfg.DueWindow) {
			continue
		}
		if r.TakenToday(now) {
			continue
		}

		sent, err := d.store.WasSent(ctx, r.ID, date)
		if err != nil {
			// A broken dedupe read must not silence reminders; a duplicate
			// alert beats a missed dose.
			d.logger.Warn("failed to check sent state",
				logging.String("reminder_id", string(r.ID)),
				logging.Err(err))
			d.metrics.RecordDispatchError(ctx, "dedupe")
		}
		if sent {
			continue
		}

		med := d.medicationFor(ctx, medCache, r.MedicationID)
		if med == nil || !med.IsActive {
			continue
		}

		if d.dispatch(ctx, r, med, date) {
			dispatched++
		}
	}

	d.metrics.RecordCycle(ctx, len(active), dispatched, float64(time.Since(start))/float64(time.Millisecond))
	if dispatched > 0 {
		d.logger.Info("dispatch cycle complete",
			logging.Int("scanned", len(active)),
			logging.Int("dispatched", dispatched))
	}
	return nil
}

// medicationFor loads a reminder's medication through a per-cycle cache, so
// a medication with several due slots is read once.  Lookup failures cache
// as nil and the reminder is skipped this cycle.
func (d *Dispatcher) medicationFor(ctx context.Context, cache map[common.ID]*medication.Medication, id common.ID) *medication.Medication {
	if m, ok := cache[id]; ok {
		return m
	}
	m, err := d.medications.FindByID(ctx, id)
	if err != nil {
		d.logger.Warn("failed to load medication for due reminder",
			logging.String("medication_id", string(id)),
			logging.Err(err))
		d.metrics.RecordDispatchError(ctx, "medication")
		cache[id] = nil
		return nil
	}
	cache[id] = m
	return m
}

// dispatch sends one due reminder: event first, then the pending-alert store,
// then the sent marker.  A failed publish leaves the marker unset so the next
// cycle retries; a failed store write does not, because the event already
// went out.
func (d *Dispatcher) dispatch(ctx context.Context, r *schedule.Reminder, med *medication.Medication, date string) bool {
	if d.events != nil {
		notif := schedtypes.DueNotification{
			ReminderID:     r.ID,
			MedicationID:   r.MedicationID,
			UserID:         r.UserID,
			MedicationName: med.Name,
			Dosage:         med.Dosage,
			Time:           r.ClockTime,
			Date:           date,
		}
		env, err := kafkainfra.NewEventEnvelope(kafkainfra.TopicReminderDue, eventSource, notif)
		if err != nil {
			d.logger.Warn("failed to build reminder.due event", logging.Err(err))
			d.metrics.RecordDispatchError(ctx, "publish")
			return false
		}
		msg, err := env.ToMessage(kafkainfra.TopicReminderDue, string(r.UserID))
		if err != nil {
			d.logger.Warn("failed to encode reminder.due event", logging.Err(err))
			d.metrics.RecordDispatchError(ctx, "publish")
			return false
		}
		if err := d.events.Publish(ctx, msg); err != nil {
			d.logger.Warn("failed to publish reminder.due event",
				logging.String("reminder_id", string(r.ID)),
				logging.Err(err))
			d.metrics.RecordDispatchError(ctx, "publish")
			return false
		}
	}

	if err := d.store.Add(ctx, r.ToActive(med.Name, med.Dosage)); err != nil {
		d.logger.Warn("failed to store pending alert",
			logging.String("reminder_id", string(r.ID)),
			logging.Err(err))
		d.metrics.RecordDispatchError(ctx, "store")
	}
	if err := d.store.MarkSent(ctx, r.ID, date); err != nil {
		d.logger.Warn("failed to mark reminder sent",
			logging.String("reminder_id", string(r.ID)),
			logging.Err(err))
		d.metrics.RecordDispatchError(ctx, "dedupe")
	}

	d.logger.Info("reminder dispatched",
		logging.String("user_id", string(r.UserID)),
		logging.String("medication", med.Name),
		logging.String("time", r.ClockTime))
	return true
}
