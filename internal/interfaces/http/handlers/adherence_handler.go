package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// AdherenceHandler serves dose logging, history and compliance reporting.
type AdherenceHandler struct {
	svc     adherence.Service
	metrics *prom.AppMetrics
	logger  logging.Logger
}

// NewAdherenceHandler creates the handler.  metrics may be nil.
func NewAdherenceHandler(svc adherence.Service, metrics *prom.AppMetrics, logger logging.Logger) *AdherenceHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AdherenceHandler{
		svc:     svc,
		metrics: metrics,
		logger:  logger.Named("adherence_handler"),
	}
}

// RegisterRoutes mounts the adherence routes on rg.
func (h *AdherenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/doses", h.TakeDose)
	rg.GET("/doses", h.History)
	rg.GET("/adherence/report", h.ComplianceReport)
}

// TakeDose handles POST /doses.
func (h *AdherenceHandler) TakeDose(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	var req schedtypes.TakeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "request body must be valid JSON")
		return
	}

	result, err := h.svc.TakeDose(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.metrics != nil {
		prom.RecordDoseEvent(h.metrics, "take")
	}
	c.JSON(http.StatusCreated, result)
}

// doseHistoryResponse wraps the dose log page.
type doseHistoryResponse struct {
	Doses []schedtypes.DoseLogDTO `json:"doses"`
	Count int                     `json:"count"`
}

// History handles GET /doses?limit=N, newest first.
func (h *AdherenceHandler) History(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", 0)
	doses, err := h.svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doseHistoryResponse{Doses: doses, Count: len(doses)})
}

// ComplianceReport handles GET /adherence/report?days=N.
func (h *AdherenceHandler) ComplianceReport(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	days := queryInt(c, "days", 0)
	report, err := h.svc.ComplianceReport(c.Request.Context(), userID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
