package client

import (
	"context"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// UserProfile is the caller's profile as stored by the server.
type UserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable profile fields.  The update is partial:
// an empty field keeps its current value.  Timezone must be an IANA zone
// name such as "America/New_York"; it anchors reminder dispatch and
// compliance day boundaries.
type ProfileUpdate struct {
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// ---------------------------------------------------------------------------
// UsersClient
// ---------------------------------------------------------------------------

// UsersClient provides access to the caller's profile.
type UsersClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// Public methods
// ---------------------------------------------------------------------------

// Me returns the caller's profile.  First contact provisions a profile with
// defaults, so this never reports not-found for a valid user ID.
// GET /api/v1/users/me
func (uc *UsersClient) Me(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := uc.client.get(ctx, "/api/v1/users/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile updates the caller's display name and timezone.  At least
// one field must be set; the other keeps its current value.
// PUT /api/v1/users/me
func (uc *UsersClient) UpdateProfile(ctx context.Context, req *ProfileUpdate) (*UserProfile, error) {
	if req == nil {
		return nil, invalidArg("profile update is required")
	}
	if strings.TrimSpace(req.DisplayName) == "" && strings.TrimSpace(req.Timezone) == "" {
		return nil, invalidArg("display_name or timezone is required")
	}

	var profile UserProfile
	if err := uc.client.put(ctx, "/api/v1/users/me", req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
