package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// ReminderHandler serves the reminder schedule and the pending-alert poll.
type ReminderHandler struct {
	svc    adherence.Service
	logger logging.Logger
}

// NewReminderHandler creates the handler.
func NewReminderHandler(svc adherence.Service, logger logging.Logger) *ReminderHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ReminderHandler{
		svc:    svc,
		logger: logger.Named("reminder_handler"),
	}
}

// RegisterRoutes mounts the reminder routes on rg.
func (h *ReminderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reminders", h.List)
	rg.GET("/reminders/active", h.Active)
}

// reminderListResponse wraps the reminder schedule.
type reminderListResponse struct {
	Reminders []schedtypes.ReminderDTO `json:"reminders"`
	Count     int                      `json:"count"`
}

// List handles GET /reminders: the configured schedule, ordered by clock time.
func (h *ReminderHandler) List(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	reminders, err := h.svc.ListReminders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminderListResponse{Reminders: reminders, Count: len(reminders)})
}

// activeReminderResponse wraps the dispatched-but-unacknowledged alerts.
type activeReminderResponse struct {
	Active []schedtypes.ActiveReminder `json:"active"`
	Count  int                         `json:"count"`
}

// Active handles GET /reminders/active: the alerts the frontend polls for.
func (h *ReminderHandler) Active(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	active, err := h.svc.ActiveReminders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activeReminderResponse{Active: active, Count: len(active)})
}
