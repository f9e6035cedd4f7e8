package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// scanFormField is the multipart field the scan upload is read from.
const scanFormField = "scan"

// defaultMaxUploadBytes bounds how much of an upload the handler reads
// before the service sees it.  The service applies its own limit; this one
// exists so an oversized body is cut off at the transport.
const defaultMaxUploadBytes = 10 << 20

// PrescriptionHandler serves digitization and scan archival.
type PrescriptionHandler struct {
	svc            prescription.Service
	metrics        *prom.AppMetrics
	maxUploadBytes int64
	logger         logging.Logger
}

// NewPrescriptionHandler creates the handler.  metrics may be nil.
func NewPrescriptionHandler(svc prescription.Service, metrics *prom.AppMetrics, logger logging.Logger) *PrescriptionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PrescriptionHandler{
		svc:            svc,
		metrics:        metrics,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger.Named("prescription_handler"),
	}
}

// RegisterRoutes mounts the prescription routes on rg.
func (h *PrescriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/prescriptions/digitize", h.Digitize)
	rg.POST("/prescriptions/digitize/batch", h.DigitizeBatch)
	rg.POST("/prescriptions/scans", h.UploadScan)
	rg.GET("/prescriptions/scans/:scanID", h.DownloadScan)
	rg.GET("/prescriptions/scans/:scanID/url", h.ScanURL)
}

// Digitize handles POST /prescriptions/digitize.
func (h *PrescriptionHandler) Digitize(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	var req medtypes.DigitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "request body must be valid JSON")
		return
	}

	resp, err := h.svc.Digitize(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// batchDigitizeRequest wraps the batch payload.
type batchDigitizeRequest struct {
	Requests []*medtypes.DigitizeRequest `json:"requests"`
}

// batchDigitizeResponse returns the per-item responses in input order.
type batchDigitizeResponse struct {
	Responses []*medtypes.DigitizeResponse `json:"responses"`
	Count     int                          `json:"count"`
}

// DigitizeBatch handles POST /prescriptions/digitize/batch.
func (h *PrescriptionHandler) DigitizeBatch(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	var req batchDigitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "request body must be valid JSON")
		return
	}

	responses, err := h.svc.DigitizeBatch(c.Request.Context(), userID, req.Requests)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchDigitizeResponse{
		Responses: responses,
		Count:     len(responses),
	})
}

// UploadScan handles POST /prescriptions/scans (multipart upload).
func (h *PrescriptionHandler) UploadScan(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile(scanFormField)
	if err != nil {
		respondValidation(c, "multipart field \"scan\" is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, pkgerrors.Wrap(err, pkgerrors.ErrCodeBadRequest, "cannot read uploaded scan"))
		return
	}
	defer file.Close()

	// Read one byte past the limit so oversize is detectable without
	// buffering an arbitrarily large body.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondError(c, pkgerrors.Wrap(err, pkgerrors.ErrCodeBadRequest, "cannot read uploaded scan"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if int64(len(data)) > h.maxUploadBytes {
		h.recordIngest(contentType, int64(len(data)), false)
		respondError(c, pkgerrors.New(pkgerrors.ErrCodeScanTooLarge, "prescription scan exceeds size limit"))
		return
	}

	result, err := h.svc.IngestScan(c.Request.Context(), userID, &prescription.ScanUpload{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		h.recordIngest(contentType, int64(len(data)), false)
		respondError(c, err)
		return
	}

	h.recordIngest(result.Format, int64(result.SizeBytes), true)
	c.JSON(http.StatusCreated, result)
}

// DownloadScan handles GET /prescriptions/scans/:scanID.
func (h *PrescriptionHandler) DownloadScan(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	download, err := h.svc.FetchScan(c.Request.Context(), userID, c.Param("scanID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, download.ContentType, download.Data)
}

// scanURLResponse carries a presigned, time-limited download link.
type scanURLResponse struct {
	ScanID string `json:"scan_id"`
	URL    string `json:"url"`
}

// ScanURL handles GET /prescriptions/scans/:scanID/url.
func (h *PrescriptionHandler) ScanURL(c *gin.Context) {
	userID, ok := scopedUser(c)
	if !ok {
		return
	}

	scanID := c.Param("scanID")
	url, err := h.svc.ScanDownloadURL(c.Request.Context(), userID, scanID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scanURLResponse{ScanID: scanID, URL: url})
}

func (h *PrescriptionHandler) recordIngest(format string, sizeBytes int64, accepted bool) {
	if h.metrics == nil {
		return
	}
	prom.RecordScanIngest(h.metrics, format, sizeBytes, accepted)
}
