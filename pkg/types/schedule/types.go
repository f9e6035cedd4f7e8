// Package schedule defines the reminder- and adherence-domain Data Transfer
// Objects shared across layers: reminder views, active-reminder payloads, dose
// logs, and compliance reports.  No domain logic lives here.
package schedule

import (
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Reminder types
// ─────────────────────────────────────────────────────────────────────────────

// ReminderDTO is the cross-layer representation of a stored reminder slot.
// Time is a 24-hour wall-clock string in "HH:MM" format.
type ReminderDTO struct {
	ID             common.ID     `json:"id"`
	MedicationID   common.ID     `json:"medication_id"`
	UserID         common.UserID `json:"user_id"`
	MedicationName string        `json:"medication_name"`
	Dosage         string        `json:"dosage"`
	Time           string        `json:"time"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ActiveReminder is the compact payload held in the active-reminder store and
// scanned by the dispatch loop.  It carries everything a notification needs so
// that dispatch does not have to re-query the database.
type ActiveReminder struct {
	ReminderID     common.ID     `json:"reminder_id"`
	MedicationID   common.ID     `json:"medication_id"`
	UserID         common.UserID `json:"user_id"`
	MedicationName string        `json:"medication_name"`
	Dosage         string        `json:"dosage"`
	Time           string        `json:"time"`
}

// DueNotification is the message published when a reminder falls due.  Date is
// the dispatch day ("2006-01-02"), used by consumers to de-duplicate.
type DueNotification struct {
	ReminderID     common.ID     `json:"reminder_id"`
	MedicationID   common.ID     `json:"medication_id"`
	UserID         common.UserID `json:"user_id"`
	MedicationName string        `json:"medication_name"`
	Dosage         string        `json:"dosage"`
	Time           string        `json:"time"`
	Date           string        `json:"date"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Adherence types
// ─────────────────────────────────────────────────────────────────────────────

// DoseLogDTO records that a user took a dose of a medication.
type DoseLogDTO struct {
	ID            common.ID     `json:"id"`
	MedicationID  common.ID     `json:"medication_id"`
	UserID        common.UserID `json:"user_id"`
	TakenAt       time.Time     `json:"taken_at"`
	ScheduledTime string        `json:"scheduled_time,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// TakeDoseRequest is the input DTO for logging a taken dose.  ScheduledTime
// optionally names the "HH:MM" slot the dose was taken against.
type TakeDoseRequest struct {
	MedicationID  string `json:"medication_id"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// ComplianceEntry summarizes adherence for one medication over a reporting
// period.  Rate is TakenDoses / ExpectedDoses clamped to [0.0, 1.0];
// ExpectedDoses of zero yields a Rate of 1.0 (nothing was missed).
type ComplianceEntry struct {
	MedicationID   common.ID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Frequency      string    `json:"frequency"`
	ExpectedDoses  int       `json:"expected_doses"`
	TakenDoses     int       `json:"taken_doses"`
	Rate           float64   `json:"rate"`
}

// ComplianceReport aggregates per-medication adherence for a user.
type ComplianceReport struct {
	UserID      common.UserID     `json:"user_id"`
	PeriodDays  int               `json:"period_days"`
	Entries     []ComplianceEntry `json:"entries"`
	OverallRate float64           `json:"overall_rate"`
	GeneratedAt time.Time         `json:"generated_at"`
}
