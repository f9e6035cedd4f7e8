// Package prescription orchestrates the digitization pipeline: scan intake,
// OCR, text extraction, medication registration, reminder materialization
// and the medication.extracted event.  It owns no business rules itself;
// those live in the domain and intelligence layers it coordinates.
package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	intelcommon "github.com/turtacn/MedRx-Intelligence/internal/intelligence/common"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

// ─────────────────────────────────────────────────────────────────────────────
// Service interface
// ─────────────────────────────────────────────────────────────────────────────

// Service is the application-level API for prescription digitization.
type Service interface {
	// Digitize runs prescription text through the extraction pipeline,
	// persists the resulting medications for the user and materializes
	// their reminders.  Re-digitizing the same prescription is idempotent:
	// already-tracked medications are skipped, not duplicated.
	Digitize(ctx context.Context, userID common.UserID, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error)

	// DigitizeBatch digitizes several prescriptions with bounded
	// concurrency.  Responses come back in input order; a failed item
	// yields a degraded response carrying the failure as a warning, so one
	// bad prescription never sinks the batch.
	DigitizeBatch(ctx context.Context, userID common.UserID, reqs []*medtypes.DigitizeRequest) ([]*medtypes.DigitizeResponse, error)

	// IngestScan archives an uploaded prescription scan and, when an OCR
	// engine is configured, recognizes and digitizes its text in the same
	// call.  A scan that cannot be OCR'd is still archived; the response
	// says what happened.
	IngestScan(ctx context.Context, userID common.UserID, upload *ScanUpload) (*ScanResult, error)

	// FetchScan returns the archived bytes of one of the user's scans.
	FetchScan(ctx context.Context, userID common.UserID, scanID string) (*ScanDownload, error)

	// ScanDownloadURL returns a time-limited URL for one of the user's
	// scans, so large images can be served straight from object storage
	// instead of proxied through the API.
	ScanDownloadURL(ctx context.Context, userID common.UserID, scanID string) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// ScanUpload is one uploaded prescription image or PDF.
type ScanUpload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ScanResult reports the outcome of a scan ingestion.  Digitize is nil when
// no text could be recognized; Warnings explains why.
type ScanResult struct {
	ScanID     string                     `json:"scan_id"`
	Format     string                     `json:"format"`
	SizeBytes  int                        `json:"size_bytes"`
	OCRApplied bool                       `json:"ocr_applied"`
	Digitize   *medtypes.DigitizeResponse `json:"digitize,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// ScanDownload carries archived scan bytes back to the caller.
type ScanDownload struct {
	ScanID      string `json:"scan_id"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// ScanArchive stores original scan bytes keyed by (user, scan).  Keying by
// user makes ownership a property of the key, so a fetch can never cross
// user boundaries.  Implemented by the MinIO adapter.
type ScanArchive interface {
	Store(ctx context.Context, userID common.UserID, scanID string, data []byte, contentType string) error
	Fetch(ctx context.Context, userID common.UserID, scanID string) ([]byte, string, error)
	DownloadURL(ctx context.Context, userID common.UserID, scanID string) (string, error)
}

// EventPublisher publishes platform events.  Implemented by the kafka
// producer; digitization treats publishing as best-effort and never fails a
// user request over it.
type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

const (
	defaultMaxScanBytes     = 10 << 20 // 10 MiB
	defaultBatchConcurrency = 4
	eventSource             = "prescription-service"
)

type serviceImpl struct {
	extractor   rxextractor.Extractor
	users       *user.Service
	medications *medication.Service
	schedules   *schedule.Service

	archive      ScanArchive
	events       EventPublisher
	ocr          intelcommon.OCREngine
	maxScanBytes int

	batch  intelcommon.BatchProcessor[*medtypes.DigitizeRequest, *medtypes.DigitizeResponse]
	logger logging.Logger
}

// ServiceOption configures optional collaborators of the service.
type ServiceOption func(*serviceImpl)

// WithScanArchive enables scan intake backed by the given archive.
func WithScanArchive(a ScanArchive) ServiceOption {
	return func(s *serviceImpl) { s.archive = a }
}

// WithEventPublisher enables best-effort event publishing.
func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *serviceImpl) { s.events = p }
}

// WithOCREngine enables text recognition during scan ingestion.
func WithOCREngine(e intelcommon.OCREngine) ServiceOption {
	return func(s *serviceImpl) { s.ocr = e }
}

// WithMaxScanBytes overrides the scan size limit.
func WithMaxScanBytes(n int) ServiceOption {
	return func(s *serviceImpl) {
		if n > 0 {
			s.maxScanBytes = n
		}
	}
}

// WithBatchConcurrency overrides how many prescriptions DigitizeBatch
// processes at once.
func WithBatchConcurrency(n int) ServiceOption {
	return func(s *serviceImpl) {
		if n > 0 {
			s.batch = newDigitizeBatch(n)
		}
	}
}

func newDigitizeBatch(concurrency int) intelcommon.BatchProcessor[*medtypes.DigitizeRequest, *medtypes.DigitizeResponse] {
	return intelcommon.NewBatchProcessor[*medtypes.DigitizeRequest, *medtypes.DigitizeResponse](
		intelcommon.WithBatchName("digitize"),
		intelcommon.WithMaxConcurrency(concurrency),
	)
}

// NewService assembles the digitization service.  The extractor and the
// three domain services are mandatory; storage, events and OCR are wired
// through options so the service degrades cleanly in deployments without
// them.
func NewService(
	extractor rxextractor.Extractor,
	users *user.Service,
	medications *medication.Service,
	schedules *schedule.Service,
	logger logging.Logger,
	opts ...ServiceOption,
) (Service, error) {
	if extractor == nil {
		return nil, pkgerrors.InvalidParam("extractor is required")
	}
	if users == nil || medications == nil || schedules == nil {
		return nil, pkgerrors.InvalidParam("user, medication and schedule services are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &serviceImpl{
		extractor:    extractor,
		users:        users,
		medications:  medications,
		schedules:    schedules,
		maxScanBytes: defaultMaxScanBytes,
		batch:        newDigitizeBatch(defaultBatchConcurrency),
		logger:       logger.Named("prescription"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Digitize
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Digitize(ctx context.Context, userID common.UserID, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if req == nil {
		return nil, pkgerrors.InvalidParam("digitize request must not be nil")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.ErrCodeTextEmpty, "prescription text is empty")
	}

	if _, err := s.users.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	extraction, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	created, skipped, err := s.medications.RegisterExtracted(ctx, userID, extraction.Records)
	if err != nil {
		return nil, err
	}

	resp := &medtypes.DigitizeResponse{
		Medications:      make([]medtypes.MedicationDTO, 0, len(created)),
		MedicationsFound: extraction.RecordCount,
		QualityScore:     extraction.QualityScore,
		Degraded:         extraction.Degraded,
		ScanID:           req.ScanID,
	}
	if extraction.Degraded && extraction.DegradedReason != "" {
		resp.Warnings = append(resp.Warnings, extraction.DegradedReason)
	}
	if skipped > 0 {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%d medication(s) already tracked and were skipped", skipped))
	}

	for _, m := range created {
		resp.Medications = append(resp.Medications, m.ToDTO())

		if _, err := s.schedules.MaterializeReminders(ctx, userID, m.ID, m.Frequency); err != nil {
			// The medication row exists; a missing schedule is repairable
			// and must not roll back the digitization.
			s.logger.Warn("failed to materialize reminders",
				logging.String("user_id", string(userID)),
				logging.String("medication_id", string(m.ID)),
				logging.Err(err))
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("reminders could not be scheduled for %s", m.Name))
		}
	}

	s.publishExtracted(ctx, userID, req.ScanID, created, extraction)

	s.logger.Info("prescription digitized",
		logging.String("user_id", string(userID)),
		logging.Int("found", extraction.RecordCount),
		logging.Int("created", len(created)),
		logging.Int("skipped", skipped),
		logging.Bool("degraded", extraction.Degraded),
		logging.Float64("quality", extraction.QualityScore))
	return resp, nil
}

// publishExtracted emits medication.extracted.  Failures are logged and
// swallowed: the user's data is already persisted.
func (s *serviceImpl) publishExtracted(ctx context.Context, userID common.UserID, scanID string, created []*medication.Medication, extraction *rxextractor.ExtractionResult) {
	if s.events == nil {
		return
	}

	ids := make([]string, 0, len(created))
	for _, m := range created {
		ids = append(ids, string(m.ID))
	}
	payload := kafkainfra.MedicationExtractedPayload{
		UserID:           string(userID),
		ScanID:           scanID,
		MedicationIDs:    ids,
		MedicationsFound: extraction.RecordCount,
		QualityScore:     extraction.QualityScore,
		Degraded:         extraction.Degraded,
		ExtractedAt:      time.Now().UTC(),
	}

	env, err := kafkainfra.NewEventEnvelope(kafkainfra.TopicMedicationExtracted, eventSource, payload)
	if err != nil {
		s.logger.Warn("failed to build medication.extracted event", logging.Err(err))
		return
	}
	msg, err := env.ToMessage(kafkainfra.TopicMedicationExtracted, string(userID))
	if err != nil {
		s.logger.Warn("failed to encode medication.extracted event", logging.Err(err))
		return
	}
	if err := s.events.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish medication.extracted event",
			logging.String("user_id", string(userID)),
			logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DigitizeBatch
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) DigitizeBatch(ctx context.Context, userID common.UserID, reqs []*medtypes.DigitizeRequest) ([]*medtypes.DigitizeResponse, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if len(reqs) == 0 {
		return nil, pkgerrors.InvalidParam("batch must contain at least one request")
	}

	result, err := s.batch.Process(ctx, reqs, func(ctx context.Context, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
		return s.Digitize(ctx, userID, req)
	})
	if err != nil {
		return nil, err
	}

	responses := make([]*medtypes.DigitizeResponse, len(reqs))
	for _, item := range result.Results {
		if item.Error != nil {
			resp := &medtypes.DigitizeResponse{
				Medications: []medtypes.MedicationDTO{},
				Degraded:    true,
				Warnings:    []string{item.Error.Error()},
			}
			if reqs[item.Index] != nil {
				resp.ScanID = reqs[item.Index].ScanID
			}
			responses[item.Index] = resp
			continue
		}
		responses[item.Index] = item.Result
	}

	s.logger.Info("prescription batch digitized",
		logging.String("user_id", string(userID)),
		logging.Int("total", result.TotalCount),
		logging.Int("succeeded", result.SuccessCount),
		logging.Int("failed", result.TotalCount-result.SuccessCount))
	return responses, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan intake
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) IngestScan(ctx context.Context, userID common.UserID, upload *ScanUpload) (*ScanResult, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if upload == nil || len(upload.Data) == 0 {
		return nil, pkgerrors.InvalidParam("scan upload must contain data")
	}
	if s.archive == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeFeatureDisabled, "scan storage is not configured")
	}
	if len(upload.Data) > s.maxScanBytes {
		return nil, pkgerrors.New(pkgerrors.ErrCodeScanTooLarge, "prescription scan exceeds size limit").
			WithDetail(fmt.Sprintf("size_bytes=%d", len(upload.Data)))
	}

	format := intelcommon.DetectImageFormat(upload.Data)
	if format == intelcommon.FormatUnknown {
		return nil, pkgerrors.New(pkgerrors.ErrCodeScanFormatUnsupported, "unsupported scan format").
			WithDetail("filename=" + upload.Filename)
	}

	if _, err := s.users.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	scanID := string(common.NewID())
	contentType := upload.ContentType
	if contentType == "" {
		contentType = contentTypeFor(format)
	}

	if err := s.archive.Store(ctx, userID, scanID, upload.Data, contentType); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeScanStoreFailed, "failed to store prescription scan")
	}

	result := &ScanResult{
		ScanID:    scanID,
		Format:    format.String(),
		SizeBytes: len(upload.Data),
	}

	s.publishScanUploaded(ctx, userID, scanID, format, len(upload.Data))

	text, warning := s.recognize(ctx, scanID, upload.Data, format)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	if text == "" {
		s.logger.Info("scan archived without digitization",
			logging.String("user_id", string(userID)),
			logging.String("scan_id", scanID),
			logging.String("format", format.String()))
		return result, nil
	}

	result.OCRApplied = true
	digitize, err := s.Digitize(ctx, userID, &medtypes.DigitizeRequest{Text: text, ScanID: scanID})
	if err != nil {
		// The scan is safely archived; report the pipeline failure without
		// discarding the intake.
		s.logger.Warn("digitization of recognized text failed",
			logging.String("scan_id", scanID),
			logging.Err(err))
		result.Warnings = append(result.Warnings, "recognized text could not be digitized: "+err.Error())
		return result, nil
	}
	result.Digitize = digitize

	s.logger.Info("scan ingested",
		logging.String("user_id", string(userID)),
		logging.String("scan_id", scanID),
		logging.Int("medications_found", digitize.MedicationsFound))
	return result, nil
}

// recognize runs OCR when an engine is configured.  It returns the
// recognized text and a human-readable warning when recognition was not
// possible.
func (s *serviceImpl) recognize(ctx context.Context, scanID string, data []byte, format intelcommon.ImageFormat) (string, string) {
	if s.ocr == nil {
		return "", "no OCR engine configured; scan archived only"
	}

	ocrResult, err := s.ocr.Recognize(ctx, &intelcommon.OCRRequest{
		ScanID: scanID,
		Image:  data,
		Format: format,
	})
	if err != nil {
		s.logger.Warn("ocr recognition failed",
			logging.String("scan_id", scanID),
			logging.Err(err))
		return "", "text recognition failed; scan archived only"
	}
	if strings.TrimSpace(ocrResult.Text) == "" {
		return "", "no text recognized in scan"
	}
	return ocrResult.Text, ""
}

func (s *serviceImpl) publishScanUploaded(ctx context.Context, userID common.UserID, scanID string, format intelcommon.ImageFormat, size int) {
	if s.events == nil {
		return
	}
	payload := kafkainfra.ScanUploadedPayload{
		ScanID:     scanID,
		UserID:     string(userID),
		Format:     format.String(),
		SizeBytes:  size,
		UploadedAt: time.Now().UTC(),
	}
	env, err := kafkainfra.NewEventEnvelope(kafkainfra.TopicScanUploaded, eventSource, payload)
	if err != nil {
		s.logger.Warn("failed to build scan.uploaded event", logging.Err(err))
		return
	}
	msg, err := env.ToMessage(kafkainfra.TopicScanUploaded, string(userID))
	if err != nil {
		s.logger.Warn("failed to encode scan.uploaded event", logging.Err(err))
		return
	}
	if err := s.events.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish scan.uploaded event", logging.Err(err))
	}
}

func (s *serviceImpl) FetchScan(ctx context.Context, userID common.UserID, scanID string) (*ScanDownload, error) {
	if userID == "" {
		return nil, pkgerrors.InvalidParam("user id must not be empty")
	}
	if strings.TrimSpace(scanID) == "" {
		return nil, pkgerrors.InvalidParam("scan id must not be empty")
	}
	if s.archive == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeFeatureDisabled, "scan storage is not configured")
	}

	data, contentType, err := s.archive.Fetch(ctx, userID, scanID)
	if err != nil {
		return nil, err
	}
	return &ScanDownload{
		ScanID:      scanID,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (s *serviceImpl) ScanDownloadURL(ctx context.Context, userID common.UserID, scanID string) (string, error) {
	if userID == "" {
		return "", pkgerrors.InvalidParam("user id must not be empty")
	}
	if strings.TrimSpace(scanID) == "" {
		return "", pkgerrors.InvalidParam("scan id must not be empty")
	}
	if s.archive == nil {
		return "", pkgerrors.New(pkgerrors.ErrCodeFeatureDisabled, "scan storage is not configured")
	}
	return s.archive.DownloadURL(ctx, userID, scanID)
}

func contentTypeFor(format intelcommon.ImageFormat) string {
	switch format {
	case intelcommon.FormatPNG:
		return "image/png"
	case intelcommon.FormatJPEG:
		return "image/jpeg"
	case intelcommon.FormatTIFF:
		return "image/tiff"
	case intelcommon.FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
