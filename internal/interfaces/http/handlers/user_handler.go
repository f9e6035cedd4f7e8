package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
)

// UserHandler serves the caller's own profile.  There is no cross-user
// lookup; the resource is always "me".
type UserHandler struct {
	svc    *user.Service
	logger logging.Logger
}

// NewUserHandler creates the handler.
func NewUserHandler(svc *user.Service, logger logging.Logger) *UserHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &UserHandler{
		svc:    svc,
		logger: logger.Named("user_handler"),
	}
}

// RegisterRoutes mounts the profile routes on rg.
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.GetProfile)
	rg.PUT("/users/me", h.UpdateProfile)
}

// GetProfile handles GET /users/me.  First contact provisions the profile,
// so the call never 404s for a scoped caller.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	profile, err := h.svc.EnsureUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// updateProfileRequest is a partial profile update; empty fields keep their
// current value.
type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

// UpdateProfile handles PUT /users/me.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "request body must be valid JSON")
		return
	}

	profile, err := h.svc.UpdateProfile(c.Request.Context(), userID, req.DisplayName, req.Timezone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
