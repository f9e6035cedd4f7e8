package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// MedicationHandler serves the medication regimen resource.
type MedicationHandler struct {
	svc    adherence.Service
	logger logging.Logger
}

// NewMedicationHandler creates the handler.
func NewMedicationHandler(svc adherence.Service, logger logging.Logger) *MedicationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MedicationHandler{
		svc:    svc,
		logger: logger.Named("medication_handler"),
	}
}

// RegisterRoutes mounts the medication routes on rg.
func (h *MedicationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/medications", h.List)
	rg.POST("/medications", h.Add)
	rg.GET("/medications/:id", h.Get)
	rg.DELETE("/medications/:id", h.Deactivate)
}

// medicationListResponse wraps the collection so the shape can grow
// (pagination, filters) without breaking clients.
type medicationListResponse struct {
	Medications []medtypes.MedicationDTO `json:"medications"`
	Count       int                      `json:"count"`
}

// List handles GET /medications.
func (h *MedicationHandler) List(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	meds, err := h.svc.ListMedications(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, medicationListResponse{Medications: meds, Count: len(meds)})
}

// Add handles POST /medications (manual entry).
func (h *MedicationHandler) Add(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	var req adherence.AddMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "request body must be valid JSON")
		return
	}

	med, err := h.svc.AddMedication(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, med)
}

// Get handles GET /medications/:id.
func (h *MedicationHandler) Get(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	med, err := h.svc.GetMedication(c.Request.Context(), userID, common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, med)
}

// Deactivate handles DELETE /medications/:id.  Medications are retired, not
// erased; dose history keeps referring to them.
func (h *MedicationHandler) Deactivate(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	if err := h.svc.DeactivateMedication(c.Request.Context(), userID, common.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
