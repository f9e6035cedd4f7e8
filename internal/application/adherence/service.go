// Package adherence covers everything that happens after a prescription is
// digitized: logging taken doses, attributing them to reminder slots,
// answering history and compliance queries, and managing the medication
// regimen itself (manual additions, deactivation).
package adherence

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Service interface
// ─────────────────────────────────────────────────────────────────────────────

// Service is the application-level API for dose logging, adherence queries
// and regimen management.
type Service interface {
	// TakeDose logs a dose against a medication.  When the dose targets a
	// reminder slot — explicitly via ScheduledTime or implicitly by
	// clock-time proximity — the slot is stamped and a second dose against
	// the same slot on the same day is rejected.  Doses of medications
	// without reminders (as-needed) are logged without slot attribution.
	TakeDose(ctx context.Context, userID common.UserID, req *schedtypes.TakeDoseRequest) (*TakeDoseResult, error)

	// History returns the user's dose logs, newest first.  A non-positive
	// limit selects the default page size.
	History(ctx context.Context, userID common.UserID, limit int) ([]schedtypes.DoseLogDTO, error)

	// ComplianceReport compares expected against logged doses per active
	// medication over the trailing period.  A non-positive days selects
	// the default period.
	ComplianceReport(ctx context.Context, userID common.UserID, days int) (*schedtypes.ComplianceReport, error)

	// ListReminders returns the user's active reminder slots joined with
	// their medication names and dosages, ordered by clock time.
	ListReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ReminderDTO, error)

	// ActiveReminders returns the dispatched-but-unacknowledged alerts the
	// frontend polls for.  Without a configured store the answer is always
	// empty, because nothing can have been dispatched.
	ActiveReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error)

	// AddMedication registers a medication the user typed in and
	// materializes its reminders.  Duplicates of an active medication are
	// a conflict, unlike the idempotent digitization path.
	AddMedication(ctx context.Context, userID common.UserID, req *AddMedicationRequest) (*medtypes.MedicationDTO, error)

	// ListMedications returns the user's active medications, newest first.
	ListMedications(ctx context.Context, userID common.UserID) ([]medtypes.MedicationDTO, error)

	// GetMedication returns one of the user's medications.
	GetMedication(ctx context.Context, userID common.UserID, id common.ID) (*medtypes.MedicationDTO, error)

	// DeactivateMedication retires a medication along with its reminders
	// and pending alerts.
	DeactivateMedication(ctx context.Context, userID common.UserID, id common.ID) error
}

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// TakeDoseResult reports a logged dose and when the next one falls due.
type TakeDoseResult struct {
	Dose           schedtypes.DoseLogDTO `json:"dose"`
	MedicationName string                `json:"medication_name"`
	NextDoseAt     time.Time             `json:"next_dose_at"`
}

// AddMedicationRequest is a manually entered medication.  Empty dosage,
// frequency and duration fall back to the platform sentinels.
type AddMedicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// EventPublisher publishes platform events.  Implemented by the kafka
// producer; every publish here is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	defaultCompliancePeriodDays = 30
	maxCompliancePeriodDays     = 365

	eventSource = "adherence-service"
)

type serviceImpl struct {
	users       *user.Service
	medications *medication.Service
	schedules   *schedule.Service
	reminders   schedule.Repository
	doseLogs    schedule.DoseLogRepository

	store  schedule.ActiveReminderStore
	events EventPublisher
	logger logging.Logger
}

// ServiceOption configures optional collaborators of the service.
type ServiceOption func(*serviceImpl)

// WithActiveReminderStore wires the pending-alert store so that logging a
// dose acknowledges the medication's dispatched reminders.
func WithActiveReminderStore(s schedule.ActiveReminderStore) ServiceOption {
	return func(svc *serviceImpl) { svc.store = s }
}

// WithEventPublisher enables best-effort event publishing.
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(svc *serviceImpl) { svc.events = p }
}

// NewService assembles the adherence service.  The domain services and
// repositories are mandatory; the alert store and event publisher are wired
// through options.
func NewService(
	users *user.Service,
	medications *medication.Service,
	schedules *schedule.Service,
	reminders schedule.Repository,
	doseLogs schedule.DoseLogRepository,
	logger logging.Logger,
	opts ...ServiceOption,
) (Service, error) {
	if users == nil || medications == nil || schedules == nil {
		return nil, pkgerrors.InvalidParam("user, medication and schedule services are required")
	}
	if reminders == nil || doseLogs == nil {
		return nil, pkgerrors.InvalidParam("reminder and dose log repositories are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &serviceImpl{
		users:       users,
		medications: medications,
		schedules:   schedules,
		reminders:   reminders,
		doseLogs:    doseLogs,
		logger:      logger.Named("adherence"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// TakeDose
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) TakeDose(ctx context.Context, userID common.UserID, req *schedtypes.TakeDoseRequest) (*TakeDoseResult, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if req == nil {
		return nil, pkgerrors.InvalidParam("take dose request must not be nil")
	}
	medID := common.ID(req.MedicationID)

	med, err := s.medications.GetMedication(ctx, userID, medID)
	if err != nil {
		return nil, err
	}
	if !med.IsActive {
		return nil, pkgerrors.New(pkgerrors.ErrCodeMedicationInactive, "cannot log a dose against an inactive medication").
			WithDetail("id=" + string(medID))
	}

	now := time.Now()
	target := s.targetSlot(ctx, medID, req.ScheduledTime, now)
	if target != nil && target.TakenToday(now) {
		return nil, pkgerrors.New(pkgerrors.ErrCodeDoseAlreadyTaken, "a dose was already logged for this reminder today").
			WithDetail("time=" + target.ClockTime)
	}

	scheduled := req.ScheduledTime
	if scheduled == "" && target != nil {
		scheduled = target.ClockTime
	}
	dose, err := schedule.NewDoseLog(userID, medID, time.Time{}, scheduled, req.Notes)
	if err != nil {
		return nil, err
	}
	if err := s.doseLogs.Save(ctx, dose); err != nil {
		s.logger.Error("failed to save dose log",
			logging.String("medication_id", string(medID)),
			logging.Err(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to save dose log")
	}

	// The dose is recorded.  Everything below is bookkeeping that must not
	// undo that fact.
	if target != nil {
		if err := s.reminders.UpdateLastTaken(ctx, target.ID, dose.TakenAt); err != nil {
			s.logger.Warn("failed to stamp reminder slot",
				logging.String("reminder_id", string(target.ID)),
				logging.Err(err))
		}
	}
	if s.store != nil {
		if err := s.store.ClearMedication(ctx, userID, medID); err != nil {
			s.logger.Warn("failed to clear pending alerts",
				logging.String("medication_id", string(medID)),
				logging.Err(err))
		}
	}
	s.publish(ctx, kafkainfra.TopicDoseLogged, string(userID), kafkainfra.DoseLoggedPayload{
		DoseLogID:     string(dose.ID),
		MedicationID:  string(medID),
		UserID:        string(userID),
		TakenAt:       dose.TakenAt,
		ScheduledTime: dose.ScheduledTime,
	})

	s.logger.Info("dose logged",
		logging.String("user_id", string(userID)),
		logging.String("medication_id", string(medID)),
		logging.String("scheduled_time", dose.ScheduledTime))
	return &TakeDoseResult{
		Dose:           dose.ToDTO(),
		MedicationName: med.Name,
		NextDoseAt:     schedule.NextDose(dose.TakenAt, med.Frequency),
	}, nil
}

// targetSlot resolves which reminder slot a dose belongs to: the explicitly
// requested clock time if it matches one of the medication's slots, else the
// slot circularly nearest to now.  Attribution is best-effort; a lookup
// failure only means the dose goes unattributed.
func (s *serviceImpl) targetSlot(ctx context.Context, medID common.ID, scheduledTime string, now time.Time) *schedule.Reminder {
	reminders, err := s.reminders.FindActiveByMedication(ctx, medID)
	if err != nil {
		s.logger.Warn("failed to load reminder slots for dose attribution",
			logging.String("medication_id", string(medID)),
			logging.Err(err))
		return nil
	}
	if scheduledTime != "" {
		for _, r := range reminders {
			if r.ClockTime == scheduledTime {
				return r
			}
		}
		s.logger.Warn("requested slot does not exist for medication",
			logging.String("medication_id", string(medID)),
			logging.String("scheduled_time", scheduledTime))
		return nil
	}
	return schedule.NearestReminder(reminders, now)
}

// ─────────────────────────────────────────────────────────────────────────────
// History and compliance
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) History(ctx context.Context, userID common.UserID, limit int) ([]schedtypes.DoseLogDTO, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	logs, err := s.doseLogs.FindByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to load dose history")
	}
	out := make([]schedtypes.DoseLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.ToDTO())
	}
	return out, nil
}

func (s *serviceImpl) ComplianceReport(ctx context.Context, userID common.UserID, days int) (*schedtypes.ComplianceReport, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if days <= 0 {
		days = defaultCompliancePeriodDays
	}
	if days > maxCompliancePeriodDays {
		return nil, pkgerrors.New(pkgerrors.ErrCodeCompliancePeriodInvalid, "compliance period exceeds one year").
			WithDetail(fmt.Sprintf("days=%d", days))
	}

	meds, err := s.medications.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	periodStart := now.AddDate(0, 0, -days)
	report := &schedtypes.ComplianceReport{
		UserID:      userID,
		PeriodDays:  days,
		Entries:     make([]schedtypes.ComplianceEntry, 0, len(meds)),
		GeneratedAt: now,
	}
	if len(meds) == 0 {
		// Nothing prescribed, nothing missed.
		report.OverallRate = 1.0
		return report, nil
	}

	var sum float64
	for _, med := range meds {
		// A medication added mid-period is only accountable from its
		// creation, not from the period start.
		since := periodStart
		if med.CreatedAt.After(since) {
			since = med.CreatedAt
		}

		expected := schedule.ExpectedDoses(med.Frequency, since)
		taken, err := s.doseLogs.CountByMedicationSince(ctx, med.ID, since)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to count logged doses")
		}

		rate := 1.0
		if expected > 0 {
			rate = float64(taken) / float64(expected)
			if rate > 1.0 {
				rate = 1.0
			}
		}
		report.Entries = append(report.Entries, schedtypes.ComplianceEntry{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Frequency:      med.Frequency,
			ExpectedDoses:  expected,
			TakenDoses:     taken,
			Rate:           rate,
		})
		sum += rate
	}
	report.OverallRate = sum / float64(len(meds))

	s.logger.Info("compliance report generated",
		logging.String("user_id", string(userID)),
		logging.Int("period_days", days),
		logging.Int("medications", len(meds)),
		logging.Float64("overall_rate", report.OverallRate))
	return report, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reminder queries
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) ListReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ReminderDTO, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}

	reminders, err := s.reminders.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to list reminders")
	}
	meds, err := s.medications.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[common.ID]*medication.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	out := make([]schedtypes.ReminderDTO, 0, len(reminders))
	for _, r := range reminders {
		med, ok := byID[r.MedicationID]
		if !ok {
			// Medication retired between the two reads; its reminders are
			// on their way out too.
			continue
		}
		out = append(out, r.ToDTO(med.Name, med.Dosage))
	}
	return out, nil
}

func (s *serviceImpl) ActiveReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if s.store == nil {
		return []schedtypes.ActiveReminder{}, nil
	}

	pending, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeCacheError, "failed to list pending alerts")
	}
	return pending, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Regimen management
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) AddMedication(ctx context.Context, userID common.UserID, req *AddMedicationRequest) (*medtypes.MedicationDTO, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if req == nil {
		return nil, pkgerrors.InvalidParam("add medication request must not be nil")
	}

	if _, err := s.users.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	med, err := s.medications.RegisterManual(ctx, userID, req.Name, req.Dosage, req.Frequency, req.Duration, req.Instructions)
	if err != nil {
		return nil, err
	}

	if _, err := s.schedules.MaterializeReminders(ctx, userID, med.ID, med.Frequency); err != nil {
		// Same policy as digitization: the medication row exists and the
		// schedule can be repaired.
		s.logger.Warn("failed to materialize reminders for manual medication",
			logging.String("medication_id", string(med.ID)),
			logging.Err(err))
	}

	s.publish(ctx, kafkainfra.TopicMedicationRegistered, string(userID), kafkainfra.MedicationRegisteredPayload{
		MedicationID: string(med.ID),
		UserID:       string(userID),
		Name:         med.Name,
		Source:       string(med.Source),
		RegisteredAt: med.CreatedAt,
	})

	dto := med.ToDTO()
	return &dto, nil
}

func (s *serviceImpl) ListMedications(ctx context.Context, userID common.UserID) ([]medtypes.MedicationDTO, error) {
	meds, err := s.medications.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]medtypes.MedicationDTO, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.ToDTO())
	}
	return out, nil
}

func (s *serviceImpl) GetMedication(ctx context.Context, userID common.UserID, id common.ID) (*medtypes.MedicationDTO, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	med, err := s.medications.GetMedication(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := med.ToDTO()
	return &dto, nil
}

func (s *serviceImpl) DeactivateMedication(ctx context.Context, userID common.UserID, id common.ID) error {
	if userID == "" {
		return pkgerrors.InvalidParam("user id must not be empty")
	}

	if err := s.medications.DeactivateMedication(ctx, userID, id); err != nil {
		return err
	}

	// The medication is retired; the dispatch loop re-checks it before
	// firing, so a surviving reminder row is hygiene, not a hazard.
	if err := s.schedules.DeactivateForMedication(ctx, id); err != nil {
		s.logger.Warn("failed to deactivate reminders",
			logging.String("medication_id", string(id)),
			logging.Err(err))
	}
	if s.store != nil {
		if err := s.store.ClearMedication(ctx, userID, id); err != nil {
			s.logger.Warn("failed to clear pending alerts",
				logging.String("medication_id", string(id)),
				logging.Err(err))
		}
	}
	s.publish(ctx, kafkainfra.TopicMedicationDeactivated, string(userID), kafkainfra.MedicationDeactivatedPayload{
		MedicationID:  string(id),
		UserID:        string(userID),
		DeactivatedAt: time.Now().UTC(),
	})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

// publish emits one platform event, best-effort.  The caller's state change
// is already durable by the time this runs.
func (s *serviceImpl) publish(ctx context.Context, topic, key string, payload any) {
	if s.events == nil {
		return
	}
	env, err := kafkainfra.NewEventEnvelope(topic, eventSource, payload)
	if err != nil {
		s.logger.Warn("failed to build event", logging.String("topic", topic), logging.Err(err))
		return
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		s.logger.Warn("failed to encode event", logging.String("topic", topic), logging.Err(err))
		return
	}
	if err := s.events.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish event", logging.String("topic", topic), logging.Err(err))
	}
}
