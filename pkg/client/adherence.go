package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// TakeDoseResult is returned after logging a dose.  NextDoseAt is the zero
// time when the medication has no remaining scheduled slots today.
type TakeDoseResult struct {
	Dose           schedtypes.DoseLogDTO `json:"dose"`
	MedicationName string                `json:"medication_name"`
	NextDoseAt     time.Time             `json:"next_dose_at"`
}

// DoseHistory is the response envelope for History, newest dose first.
type DoseHistory struct {
	Doses []schedtypes.DoseLogDTO `json:"doses"`
	Count int                     `json:"count"`
}

// ---------------------------------------------------------------------------
// AdherenceClient
// ---------------------------------------------------------------------------

// AdherenceClient provides access to dose logging and compliance reporting
// endpoints.
type AdherenceClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// Public methods
// ---------------------------------------------------------------------------

// TakeDose logs that a dose was taken.  ScheduledTime optionally names the
// "HH:MM" slot the dose was taken against.
// POST /api/v1/doses
func (ac *AdherenceClient) TakeDose(ctx context.Context, req *schedtypes.TakeDoseRequest) (*TakeDoseResult, error) {
	if req == nil || req.MedicationID == "" {
		return nil, invalidArg("medication_id is required")
	}

	var result TakeDoseResult
	if err := ac.client.post(ctx, "/api/v1/doses", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History returns the caller's dose log, newest first.  A limit of 0 lets
// the server pick its default (50); the server caps the limit at 200.
// GET /api/v1/doses?limit=N
func (ac *AdherenceClient) History(ctx context.Context, limit int) (*DoseHistory, error) {
	if limit < 0 {
		return nil, invalidArg("limit must not be negative")
	}

	path := "/api/v1/doses"
	if limit > 0 {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		path += "?" + q.Encode()
	}

	var result DoseHistory
	if err := ac.client.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ComplianceReport compares expected doses against logged doses per
// medication over the trailing period.  A days value of 0 lets the server
// pick its default (30); the server caps the period at 365 days.
// GET /api/v1/adherence/report?days=N
func (ac *AdherenceClient) ComplianceReport(ctx context.Context, days int) (*schedtypes.ComplianceReport, error) {
	if days < 0 {
		return nil, invalidArg("days must not be negative")
	}

	path := "/api/v1/adherence/report"
	if days > 0 {
		q := url.Values{}
		q.Set("days", strconv.Itoa(days))
		path += "?" + q.Encode()
	}

	var report schedtypes.ComplianceReport
	if err := ac.client.get(ctx, path, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
