package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/internal/testutil"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// newUserRouter backs the handler with the real domain service over an
// in-memory repository; profile behavior is worth testing unfaked.
func newUserRouter() (*gin.Engine, *testutil.MemUserRepo) {
	repo := testutil.NewMemUserRepo()
	svc := user.NewService(repo, logging.NewNopLogger())
	h := NewUserHandler(svc, logging.NewNopLogger())
	return newAPIRouter(h.RegisterRoutes), repo
}

func TestGetProfile_ProvisionsOnFirstContact(t *testing.T) {
	engine, repo := newUserRouter()
	require.Equal(t, 0, repo.Len())

	w := doJSON(t, engine, http.MethodGet, "/api/v1/users/me", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, repo.Len())

	var resp user.User
	decodeJSON(t, w, &resp)
	assert.Equal(t, common.UserID(testUser), resp.ID)
	assert.Equal(t, testUser, resp.DisplayName)
	assert.Equal(t, "UTC", resp.Timezone)
}

func TestGetProfile_SecondContactReturnsSameRow(t *testing.T) {
	engine, repo := newUserRouter()

	first := doJSON(t, engine, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, engine, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, repo.Len())

	var a, b user.User
	decodeJSON(t, first, &a)
	decodeJSON(t, second, &b)
	assert.True(t, a.CreatedAt.Equal(b.CreatedAt))
}

func TestUpdateProfile_SetsDisplayNameAndTimezone(t *testing.T) {
	engine, _ := newUserRouter()

	w := doJSON(t, engine, http.MethodPut, "/api/v1/users/me", map[string]string{
		"display_name": "Pat",
		"timezone":     "Europe/Berlin",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp user.User
	decodeJSON(t, w, &resp)
	assert.Equal(t, "Pat", resp.DisplayName)
	assert.Equal(t, "Europe/Berlin", resp.Timezone)
}

func TestUpdateProfile_EmptyFieldsKeepCurrentValues(t *testing.T) {
	engine, _ := newUserRouter()

	w := doJSON(t, engine, http.MethodPut, "/api/v1/users/me", map[string]string{
		"display_name": "Pat",
		"timezone":     "Asia/Tokyo",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodPut, "/api/v1/users/me", map[string]string{
		"display_name": "Patricia",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp user.User
	decodeJSON(t, w, &resp)
	assert.Equal(t, "Patricia", resp.DisplayName)
	assert.Equal(t, "Asia/Tokyo", resp.Timezone)
}

func TestUpdateProfile_RejectsBogusTimezone(t *testing.T) {
	engine, _ := newUserRouter()

	w := doJSON(t, engine, http.MethodPut, "/api/v1/users/me", map[string]string{
		"timezone": "Mars/Olympus_Mons",
	})

	requireErrorCode(t, w, http.StatusBadRequest, pkgerrors.ErrCodeUserTimezoneInvalid)
}

func TestProfileRoutes_RequireUserIdentity(t *testing.T) {
	engine, _ := newUserRouter()

	w := doRequest(t, engine, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	requireErrorCode(t, w, http.StatusUnauthorized, pkgerrors.ErrCodeUnauthorized)
}
