package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// AddMedicationRequest describes a manually entered medication.  Only the
// name is required; the server normalizes blank dosage and frequency fields.
type AddMedicationRequest struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// MedicationList is the response envelope for List.
type MedicationList struct {
	Medications []medtypes.MedicationDTO `json:"medications"`
	Count       int                      `json:"count"`
}

// ---------------------------------------------------------------------------
// MedicationsClient
// ---------------------------------------------------------------------------

// MedicationsClient provides access to the medication list endpoints.
type MedicationsClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// Public methods
// ---------------------------------------------------------------------------

// Add records a manually entered medication.
// POST /api/v1/medications
func (mc *MedicationsClient) Add(ctx context.Context, req *AddMedicationRequest) (*medtypes.MedicationDTO, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, invalidArg("name is required")
	}

	var dto medtypes.MedicationDTO
	if err := mc.client.post(ctx, "/api/v1/medications", req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// List returns the caller's active medications.
// GET /api/v1/medications
func (mc *MedicationsClient) List(ctx context.Context) (*MedicationList, error) {
	var result MedicationList
	if err := mc.client.get(ctx, "/api/v1/medications", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a single medication by ID.
// GET /api/v1/medications/{id}
func (mc *MedicationsClient) Get(ctx context.Context, id string) (*medtypes.MedicationDTO, error) {
	if id == "" {
		return nil, invalidArg("id is required")
	}

	var dto medtypes.MedicationDTO
	path := fmt.Sprintf("/api/v1/medications/%s", url.PathEscape(id))
	if err := mc.client.get(ctx, path, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// Deactivate retires a medication.  The record and its dose history are kept
// for adherence reporting; only future reminders stop.
// DELETE /api/v1/medications/{id}
func (mc *MedicationsClient) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return invalidArg("id is required")
	}

	path := fmt.Sprintf("/api/v1/medications/%s", url.PathEscape(id))
	return mc.client.delete(ctx, path)
}
