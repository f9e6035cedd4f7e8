package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
)

func newPrescriptionRouter(svc prescription.Service, metrics *prom.AppMetrics) *gin.Engine {
	h := NewPrescriptionHandler(svc, metrics, logging.NewNopLogger())
	return newAPIRouter(h.RegisterRoutes)
}

// multipartScan builds a multipart body with one "scan" file part.
func multipartScan(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="scan"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func uploadScan(t *testing.T, engine *gin.Engine, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := multipartScan(t, filename, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/scans", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("X-User-ID", testUser)
	return doRequest(t, engine, req)
}

// ── Digitize ──────────────────────────────────────────────────────────────────

func TestDigitize_ReturnsExtractedMedications(t *testing.T) {
	var gotUser common.UserID
	var gotText string
	svc := &fakePrescriptionService{
		digitizeFn: func(_ context.Context, userID common.UserID, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
			gotUser = userID
			gotText = req.Text
			return &medtypes.DigitizeResponse{
				Medications:      []medtypes.MedicationDTO{{Name: "Amoxicillin", Dosage: "500mg"}},
				MedicationsFound: 1,
				QualityScore:     0.92,
			}, nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/prescriptions/digitize",
		map[string]string{"text": "Amoxicillin 500mg three times daily for 7 days"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.UserID(testUser), gotUser)
	assert.Contains(t, gotText, "Amoxicillin")

	var resp medtypes.DigitizeResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, 1, resp.MedicationsFound)
	assert.InDelta(t, 0.92, resp.QualityScore, 0.001)
	require.Len(t, resp.Medications, 1)
	assert.Equal(t, "Amoxicillin", resp.Medications[0].Name)
}

func TestDigitize_RejectsMalformedBody(t *testing.T) {
	engine := newPrescriptionRouter(&fakePrescriptionService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/digitize",
		strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", testUser)
	w := doRequest(t, engine, req)

	requireErrorCode(t, w, http.StatusBadRequest, pkgerrors.ErrCodeValidation)
}

func TestDigitize_RequiresUserIdentity(t *testing.T) {
	engine := newPrescriptionRouter(&fakePrescriptionService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/digitize",
		strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(t, engine, req)

	requireErrorCode(t, w, http.StatusUnauthorized, pkgerrors.ErrCodeUnauthorized)
}

func TestDigitize_MapsNotPrescriptionTo422(t *testing.T) {
	svc := &fakePrescriptionService{
		digitizeFn: func(context.Context, common.UserID, *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeTextNotPrescription, "input reads like a shopping list")
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/prescriptions/digitize",
		map[string]string{"text": "eggs, milk, bread"})

	requireErrorCode(t, w, http.StatusUnprocessableEntity, pkgerrors.ErrCodeTextNotPrescription)

	// Client errors carry the service's message through the envelope.
	var resp ErrorResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, "input reads like a shopping list", resp.Error.Message)
}

func TestDigitize_MasksInternalErrorMessage(t *testing.T) {
	svc := &fakePrescriptionService{
		digitizeFn: func(context.Context, common.UserID, *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "pgx: connection refused to 10.0.3.17:5432")
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/prescriptions/digitize",
		map[string]string{"text": "Aspirin 100mg"})

	requireErrorCode(t, w, http.StatusInternalServerError, pkgerrors.ErrCodeDatabaseError)
	assert.NotContains(t, w.Body.String(), "10.0.3.17")
}

func TestDigitizeBatch_ReturnsResponsesInOrder(t *testing.T) {
	svc := &fakePrescriptionService{
		batchFn: func(_ context.Context, _ common.UserID, reqs []*medtypes.DigitizeRequest) ([]*medtypes.DigitizeResponse, error) {
			out := make([]*medtypes.DigitizeResponse, len(reqs))
			for i, r := range reqs {
				out[i] = &medtypes.DigitizeResponse{MedicationsFound: len(r.Text)}
			}
			return out, nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/prescriptions/digitize/batch",
		map[string]any{"requests": []map[string]string{{"text": "ab"}, {"text": "wxyz"}}})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Responses []*medtypes.DigitizeResponse `json:"responses"`
		Count     int                          `json:"count"`
	}
	decodeJSON(t, w, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Responses[0].MedicationsFound)
	assert.Equal(t, 4, resp.Responses[1].MedicationsFound)
}

// ── Scan upload ───────────────────────────────────────────────────────────────

func TestUploadScan_ArchivesAndReturnsResult(t *testing.T) {
	var gotUpload *prescription.ScanUpload
	svc := &fakePrescriptionService{
		ingestFn: func(_ context.Context, _ common.UserID, upload *prescription.ScanUpload) (*prescription.ScanResult, error) {
			gotUpload = upload
			return &prescription.ScanResult{
				ScanID:    "scan-42",
				Format:    "image/png",
				SizeBytes: len(upload.Data),
				Warnings:  []string{"no OCR engine configured, scan archived without text recognition"},
			}, nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	payload := []byte("\x89PNG\r\n\x1a\nfakepixels")
	w := uploadScan(t, engine, "rx.png", "image/png", payload)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, gotUpload)
	assert.Equal(t, "rx.png", gotUpload.Filename)
	assert.Equal(t, "image/png", gotUpload.ContentType)
	assert.Equal(t, payload, gotUpload.Data)

	var resp prescription.ScanResult
	decodeJSON(t, w, &resp)
	assert.Equal(t, "scan-42", resp.ScanID)
	assert.Equal(t, len(payload), resp.SizeBytes)
	assert.False(t, resp.OCRApplied)
}

func TestUploadScan_DetectsContentTypeWhenPartOmitsIt(t *testing.T) {
	var gotContentType string
	svc := &fakePrescriptionService{
		ingestFn: func(_ context.Context, _ common.UserID, upload *prescription.ScanUpload) (*prescription.ScanResult, error) {
			gotContentType = upload.ContentType
			return &prescription.ScanResult{ScanID: "scan-1", Format: upload.ContentType, SizeBytes: len(upload.Data)}, nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	// A real PNG magic number with no Content-Type on the part.
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
	w := uploadScan(t, engine, "rx.png", "", png)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "image/png", gotContentType)
}

func TestUploadScan_RequiresScanField(t *testing.T) {
	engine := newPrescriptionRouter(&fakePrescriptionService{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "missing the file"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/scans", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", testUser)
	w := doRequest(t, engine, req)

	requireErrorCode(t, w, http.StatusBadRequest, pkgerrors.ErrCodeValidation)
}

func TestUploadScan_RejectsOversizedScan(t *testing.T) {
	svc := &fakePrescriptionService{}
	h := NewPrescriptionHandler(svc, nil, logging.NewNopLogger())
	h.maxUploadBytes = 32
	engine := newAPIRouter(h.RegisterRoutes)

	body, formType := multipartScan(t, "huge.png", "image/png", bytes.Repeat([]byte{0xAB}, 33))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/scans", body)
	req.Header.Set("Content-Type", formType)
	req.Header.Set("X-User-ID", testUser)
	w := doRequest(t, engine, req)

	requireErrorCode(t, w, http.StatusRequestEntityTooLarge, pkgerrors.ErrCodeScanTooLarge)
}

func TestUploadScan_MapsUnsupportedFormatTo415(t *testing.T) {
	svc := &fakePrescriptionService{
		ingestFn: func(context.Context, common.UserID, *prescription.ScanUpload) (*prescription.ScanResult, error) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeScanFormatUnsupported, "unsupported scan format")
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := uploadScan(t, engine, "rx.tiff", "image/tiff", []byte("II*\x00data"))
	requireErrorCode(t, w, http.StatusUnsupportedMediaType, pkgerrors.ErrCodeScanFormatUnsupported)
}

func TestUploadScan_RecordsIngestMetrics(t *testing.T) {
	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	app := prom.NewAppMetrics(collector)

	svc := &fakePrescriptionService{
		ingestFn: func(_ context.Context, _ common.UserID, upload *prescription.ScanUpload) (*prescription.ScanResult, error) {
			return &prescription.ScanResult{ScanID: "scan-9", Format: "image/jpeg", SizeBytes: len(upload.Data)}, nil
		},
	}
	engine := newPrescriptionRouter(svc, app)

	w := uploadScan(t, engine, "rx.jpg", "image/jpeg", []byte("\xFF\xD8\xFFfake"))
	require.Equal(t, http.StatusCreated, w.Code)

	mw := httptest.NewRecorder()
	collector.Handler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	exposition := mw.Body.String()
	assert.Contains(t, exposition, `test_scan_ingest_total{format="image/jpeg",status="accepted"} 1`)
}

// ── Scan download ─────────────────────────────────────────────────────────────

func TestDownloadScan_StreamsArchivedBytes(t *testing.T) {
	payload := []byte("archived scan bytes")
	svc := &fakePrescriptionService{
		fetchFn: func(_ context.Context, _ common.UserID, scanID string) (*prescription.ScanDownload, error) {
			require.Equal(t, "scan-42", scanID)
			return &prescription.ScanDownload{ScanID: scanID, ContentType: "image/png", Data: payload}, nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/prescriptions/scans/scan-42", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	raw, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)
}

func TestDownloadScan_MapsMissingScanTo404(t *testing.T) {
	svc := &fakePrescriptionService{
		fetchFn: func(context.Context, common.UserID, string) (*prescription.ScanDownload, error) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeScanNotFound, "prescription scan not found")
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/prescriptions/scans/nope", nil)
	requireErrorCode(t, w, http.StatusNotFound, pkgerrors.ErrCodeScanNotFound)
}

func TestScanURL_ReturnsPresignedLink(t *testing.T) {
	svc := &fakePrescriptionService{
		urlFn: func(_ context.Context, _ common.UserID, scanID string) (string, error) {
			return "https://minio.local/scans/" + scanID + "?X-Amz-Expires=900", nil
		},
	}
	engine := newPrescriptionRouter(svc, nil)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/prescriptions/scans/scan-42/url", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ScanID string `json:"scan_id"`
		URL    string `json:"url"`
	}
	decodeJSON(t, w, &resp)
	assert.Equal(t, "scan-42", resp.ScanID)
	assert.Contains(t, resp.URL, "X-Amz-Expires")
}
