package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Clock time
// ─────────────────────────────────────────────────────────────────────────────

// clockTimeRe validates the 24-hour "HH:MM" wall-clock format reminders are
// stored in.  TimesFor only ever produces conforming values; this guards
// custom reminder times supplied through the API.
var clockTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// minutesInDay is the modulus for circular clock arithmetic.
const minutesInDay = 24 * 60

// ValidateClockTime checks that s is a well-formed "HH:MM" string.
func ValidateClockTime(s string) error {
	if !clockTimeRe.MatchString(s) {
		return errors.New(errors.ErrCodeReminderTimeInvalid, "reminder time must be HH:MM in 24-hour format").
			WithDetail("time=" + s)
	}
	return nil
}

// clockMinutes converts a validated "HH:MM" string to minutes past midnight.
// Returns -1 for malformed input so that a corrupt stored value can never
// fire as due.
func clockMinutes(s string) int {
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min
}

// ─────────────────────────────────────────────────────────────────────────────
// Reminder entity
// ─────────────────────────────────────────────────────────────────────────────

// Reminder is one daily wall-clock slot at which a user should take a
// medication.  A medication with a "twice daily" frequency owns two Reminder
// rows.  LastTaken records the most recent dose logged against this slot and
// is set only by dose logging, never by dispatch — whether today's alert was
// already sent is tracked separately in the ActiveReminderStore.
type Reminder struct {
	ID           common.ID     `json:"id"`
	MedicationID common.ID     `json:"medication_id"`
	UserID       common.UserID `json:"user_id"`
	ClockTime    string        `json:"clock_time"`
	IsActive     bool          `json:"is_active"`
	LastTaken    *time.Time    `json:"last_taken,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewReminder constructs an active Reminder for one clock slot of a
// medication.
func NewReminder(userID common.UserID, medicationID common.ID, clockTime string) (*Reminder, error) {
	if strings.TrimSpace(string(userID)) == "" {
		return nil, errors.InvalidParam("user id must not be empty")
	}
	if err := medicationID.Validate(); err != nil {
		return nil, errors.InvalidParam("invalid medication id").WithCause(err)
	}
	if err := ValidateClockTime(clockTime); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Reminder{
		ID:           common.NewID(),
		MedicationID: medicationID,
		UserID:       userID,
		ClockTime:    clockTime,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// MarkTaken records a dose logged against this slot.
func (r *Reminder) MarkTaken(at time.Time) {
	taken := at.UTC()
	r.LastTaken = &taken
	r.UpdatedAt = time.Now().UTC()
}

// TakenToday reports whether a dose was logged against this slot on the
// calendar day of now (in now's location).
func (r *Reminder) TakenToday(now time.Time) bool {
	if r.LastTaken == nil {
		return false
	}
	y1, m1, d1 := r.LastTaken.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DueAt reports whether the reminder's clock slot falls within window of
// now's wall-clock time.  The comparison is circular, so a 00:00 slot is due
// during a 23:59 tick.  Inactive reminders are never due.
func (r *Reminder) DueAt(now time.Time, window time.Duration) bool {
	if !r.IsActive {
		return false
	}
	slot := clockMinutes(r.ClockTime)
	if slot < 0 {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	diff := slot - nowMin
	if diff < 0 {
		diff = -diff
	}
	if wrapped := minutesInDay - diff; wrapped < diff {
		diff = wrapped
	}
	return diff <= int(window.Minutes())
}

// Deactivate retires the reminder.  Safe to call repeatedly: reminders are
// deactivated in bulk when their medication is, so repeats are expected.
func (r *Reminder) Deactivate() {
	if !r.IsActive {
		return
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
}

// NearestReminder picks the reminder whose clock slot is circularly closest
// to at's wall-clock time.  Dose logging uses it to attribute an untargeted
// dose to a slot.  Returns nil for an empty slice; reminders with corrupt
// clock times are never selected.
func NearestReminder(reminders []*Reminder, at time.Time) *Reminder {
	atMin := at.Hour()*60 + at.Minute()

	var best *Reminder
	bestDiff := minutesInDay
	for _, r := range reminders {
		slot := clockMinutes(r.ClockTime)
		if slot < 0 {
			continue
		}
		diff := slot - atMin
		if diff < 0 {
			diff = -diff
		}
		if wrapped := minutesInDay - diff; wrapped < diff {
			diff = wrapped
		}
		if diff < bestDiff {
			bestDiff = diff
			best = r
		}
	}
	return best
}

// ToDTO assembles the cross-layer representation.  Medication name and
// dosage live on the medication aggregate, so the caller supplies them.
func (r *Reminder) ToDTO(medicationName, dosage string) schedtypes.ReminderDTO {
	return schedtypes.ReminderDTO{
		ID:             r.ID,
		MedicationID:   r.MedicationID,
		UserID:         r.UserID,
		MedicationName: medicationName,
		Dosage:         dosage,
		Time:           r.ClockTime,
		Active:         r.IsActive,
		CreatedAt:      r.CreatedAt,
	}
}

// ToActive builds the compact dispatch payload held in the active-reminder
// store.
func (r *Reminder) ToActive(medicationName, dosage string) schedtypes.ActiveReminder {
	return schedtypes.ActiveReminder{
		ReminderID:     r.ID,
		MedicationID:   r.MedicationID,
		UserID:         r.UserID,
		MedicationName: medicationName,
		Dosage:         dosage,
		Time:           r.ClockTime,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DoseLog entity
// ─────────────────────────────────────────────────────────────────────────────

// DoseLog records one taken dose.  ScheduledTime optionally names the
// "HH:MM" slot the dose was taken against; doses of as-needed medications
// have none.
type DoseLog struct {
	ID            common.ID     `json:"id"`
	MedicationID  common.ID     `json:"medication_id"`
	UserID        common.UserID `json:"user_id"`
	TakenAt       time.Time     `json:"taken_at"`
	ScheduledTime string        `json:"scheduled_time,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// NewDoseLog constructs a dose log entry.  A zero takenAt means "now".
func NewDoseLog(userID common.UserID, medicationID common.ID, takenAt time.Time, scheduledTime, notes string) (*DoseLog, error) {
	if strings.TrimSpace(string(userID)) == "" {
		return nil, errors.InvalidParam("user id must not be empty")
	}
	if err := medicationID.Validate(); err != nil {
		return nil, errors.InvalidParam("invalid medication id").WithCause(err)
	}
	if scheduledTime != "" {
		if err := ValidateClockTime(scheduledTime); err != nil {
			return nil, err
		}
	}
	if takenAt.IsZero() {
		takenAt = time.Now()
	}

	return &DoseLog{
		ID:            common.NewID(),
		MedicationID:  medicationID,
		UserID:        userID,
		TakenAt:       takenAt.UTC(),
		ScheduledTime: scheduledTime,
		Notes:         strings.TrimSpace(notes),
	}, nil
}

// ToDTO converts the entity to its cross-layer representation.
func (l *DoseLog) ToDTO() schedtypes.DoseLogDTO {
	return schedtypes.DoseLogDTO{
		ID:            l.ID,
		MedicationID:  l.MedicationID,
		UserID:        l.UserID,
		TakenAt:       l.TakenAt,
		ScheduledTime: l.ScheduledTime,
		Notes:         l.Notes,
	}
}
