// Package user implements the user bounded context.  Authentication is an
// upstream concern; this package only knows the profile attached to the
// opaque user identifier that request scoping provides: a display name and
// the IANA timezone reminder dispatch evaluates clock slots in.  Rows are
// provisioned lazily on a user's first write.
package user

import (
	"strings"
	"time"

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// defaultTimezone is assumed for users who never set one.
const defaultTimezone = "UTC"

// User is a platform user profile.  ID is the external identity the caller
// presents; it is not generated here.
type User struct {
	ID          common.UserID `json:"id"`
	DisplayName string        `json:"display_name"`
	Timezone    string        `json:"timezone"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewUser constructs a profile for id.  An empty displayName falls back to
// the id itself and an empty timezone to UTC, so lazy provisioning can build
// a complete row from nothing but the request identity.
func NewUser(id common.UserID, displayName, timezone string) (*User, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, errors.InvalidParam("user id must not be empty")
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = string(id)
	}

	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}
	if err := validateTimezone(timezone); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &User{
		ID:          id,
		DisplayName: displayName,
		Timezone:    timezone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// validateTimezone accepts any name the host zone database resolves.
func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return errors.New(errors.ErrCodeUserTimezoneInvalid, "timezone must be a valid IANA zone name").
			WithDetail("timezone=" + tz).
			WithCause(err)
	}
	return nil
}

// UpdateProfile applies a partial profile update.  Empty fields keep their
// current value; an invalid timezone rejects the whole update.
func (u *User) UpdateProfile(displayName, timezone string) error {
	displayName = strings.TrimSpace(displayName)
	timezone = strings.TrimSpace(timezone)

	if timezone != "" {
		if err := validateTimezone(timezone); err != nil {
			return err
		}
		u.Timezone = timezone
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Location resolves the user's timezone, falling back to UTC when the stored
// name no longer resolves (a zone database downgrade, for example).
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
