package client

import (
	"context"

	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// ReminderList is the response envelope for List.
type ReminderList struct {
	Reminders []schedtypes.ReminderDTO `json:"reminders"`
	Count     int                      `json:"count"`
}

// ActiveReminderList is the response envelope for Active.
type ActiveReminderList struct {
	Active []schedtypes.ActiveReminder `json:"active"`
	Count  int                         `json:"count"`
}

// ---------------------------------------------------------------------------
// RemindersClient
// ---------------------------------------------------------------------------

// RemindersClient provides read access to the reminder schedule.  Reminders
// are derived from medication frequency server-side; there is no endpoint to
// create one directly.
type RemindersClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// Public methods
// ---------------------------------------------------------------------------

// List returns the caller's active reminder slots joined with their
// medication names and dosages, ordered by clock time.
// GET /api/v1/reminders
func (rc *RemindersClient) List(ctx context.Context) (*ReminderList, error) {
	var result ReminderList
	if err := rc.client.get(ctx, "/api/v1/reminders", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Active returns dispatched reminders that have not yet been acknowledged by
// logging a dose.  Poll this to drive an in-app alert badge.
// GET /api/v1/reminders/active
func (rc *RemindersClient) Active(ctx context.Context) (*ActiveReminderList, error) {
	var result ActiveReminderList
	if err := rc.client.get(ctx, "/api/v1/reminders/active", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
