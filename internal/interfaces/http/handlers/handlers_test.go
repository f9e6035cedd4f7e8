package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/middleware"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	medtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/medication"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const testUser = "patient-7"

// ── Harness ───────────────────────────────────────────────────────────────────

// newAPIRouter mounts the handler routes behind the real user-scope
// middleware, the way the production router does.
func newAPIRouter(register func(rg *gin.RouterGroup)) *gin.Engine {
	engine := gin.New()
	api := engine.Group("/api/v1")
	api.Use(middleware.UserScope(middleware.DefaultUserScopeConfig(), logging.NewNopLogger()))
	register(api)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// doJSON sends a scoped request with an optional JSON body.
func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(middleware.UserIDHeader, testUser)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doRequest(t, engine, req)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// requireErrorCode asserts the standard error envelope.
func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code pkgerrors.ErrorCode) {
	t.Helper()
	require.Equal(t, status, w.Code)

	var resp ErrorResponse
	decodeJSON(t, w, &resp)
	require.Equal(t, string(code), resp.Error.Code)
	require.NotEmpty(t, resp.Error.Message)
}

// ── Service doubles ───────────────────────────────────────────────────────────

// errFakeNotWired surfaces as a 500 envelope when a test exercises a method
// it did not stub.
var errFakeNotWired = pkgerrors.New(pkgerrors.ErrCodeNotImplemented, "fake method not wired")

type fakePrescriptionService struct {
	digitizeFn func(ctx context.Context, userID common.UserID, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error)
	batchFn    func(ctx context.Context, userID common.UserID, reqs []*medtypes.DigitizeRequest) ([]*medtypes.DigitizeResponse, error)
	ingestFn   func(ctx context.Context, userID common.UserID, upload *prescription.ScanUpload) (*prescription.ScanResult, error)
	fetchFn    func(ctx context.Context, userID common.UserID, scanID string) (*prescription.ScanDownload, error)
	urlFn      func(ctx context.Context, userID common.UserID, scanID string) (string, error)
}

func (f *fakePrescriptionService) Digitize(ctx context.Context, userID common.UserID, req *medtypes.DigitizeRequest) (*medtypes.DigitizeResponse, error) {
	if f.digitizeFn == nil {
		return nil, errFakeNotWired
	}
	return f.digitizeFn(ctx, userID, req)
}

func (f *fakePrescriptionService) DigitizeBatch(ctx context.Context, userID common.UserID, reqs []*medtypes.DigitizeRequest) ([]*medtypes.DigitizeResponse, error) {
	if f.batchFn == nil {
		return nil, errFakeNotWired
	}
	return f.batchFn(ctx, userID, reqs)
}

func (f *fakePrescriptionService) IngestScan(ctx context.Context, userID common.UserID, upload *prescription.ScanUpload) (*prescription.ScanResult, error) {
	if f.ingestFn == nil {
		return nil, errFakeNotWired
	}
	return f.ingestFn(ctx, userID, upload)
}

func (f *fakePrescriptionService) FetchScan(ctx context.Context, userID common.UserID, scanID string) (*prescription.ScanDownload, error) {
	if f.fetchFn == nil {
		return nil, errFakeNotWired
	}
	return f.fetchFn(ctx, userID, scanID)
}

func (f *fakePrescriptionService) ScanDownloadURL(ctx context.Context, userID common.UserID, scanID string) (string, error) {
	if f.urlFn == nil {
		return "", errFakeNotWired
	}
	return f.urlFn(ctx, userID, scanID)
}

type fakeAdherenceService struct {
	takeDoseFn    func(ctx context.Context, userID common.UserID, req *schedtypes.TakeDoseRequest) (*adherence.TakeDoseResult, error)
	historyFn     func(ctx context.Context, userID common.UserID, limit int) ([]schedtypes.DoseLogDTO, error)
	complianceFn  func(ctx context.Context, userID common.UserID, days int) (*schedtypes.ComplianceReport, error)
	remindersFn   func(ctx context.Context, userID common.UserID) ([]schedtypes.ReminderDTO, error)
	activeFn      func(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error)
	addMedFn      func(ctx context.Context, userID common.UserID, req *adherence.AddMedicationRequest) (*medtypes.MedicationDTO, error)
	listMedsFn    func(ctx context.Context, userID common.UserID) ([]medtypes.MedicationDTO, error)
	getMedFn      func(ctx context.Context, userID common.UserID, id common.ID) (*medtypes.MedicationDTO, error)
	deactivateFn  func(ctx context.Context, userID common.UserID, id common.ID) error
}

func (f *fakeAdherenceService) TakeDose(ctx context.Context, userID common.UserID, req *schedtypes.TakeDoseRequest) (*adherence.TakeDoseResult, error) {
	if f.takeDoseFn == nil {
		return nil, errFakeNotWired
	}
	return f.takeDoseFn(ctx, userID, req)
}

func (f *fakeAdherenceService) History(ctx context.Context, userID common.UserID, limit int) ([]schedtypes.DoseLogDTO, error) {
	if f.historyFn == nil {
		return nil, errFakeNotWired
	}
	return f.historyFn(ctx, userID, limit)
}

func (f *fakeAdherenceService) ComplianceReport(ctx context.Context, userID common.UserID, days int) (*schedtypes.ComplianceReport, error) {
	if f.complianceFn == nil {
		return nil, errFakeNotWired
	}
	return f.complianceFn(ctx, userID, days)
}

func (f *fakeAdherenceService) ListReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ReminderDTO, error) {
	if f.remindersFn == nil {
		return nil, errFakeNotWired
	}
	return f.remindersFn(ctx, userID)
}

func (f *fakeAdherenceService) ActiveReminders(ctx context.Context, userID common.UserID) ([]schedtypes.ActiveReminder, error) {
	if f.activeFn == nil {
		return nil, errFakeNotWired
	}
	return f.activeFn(ctx, userID)
}

func (f *fakeAdherenceService) AddMedication(ctx context.Context, userID common.UserID, req *adherence.AddMedicationRequest) (*medtypes.MedicationDTO, error) {
	if f.addMedFn == nil {
		return nil, errFakeNotWired
	}
	return f.addMedFn(ctx, userID, req)
}

func (f *fakeAdherenceService) ListMedications(ctx context.Context, userID common.UserID) ([]medtypes.MedicationDTO, error) {
	if f.listMedsFn == nil {
		return nil, errFakeNotWired
	}
	return f.listMedsFn(ctx, userID)
}

func (f *fakeAdherenceService) GetMedication(ctx context.Context, userID common.UserID, id common.ID) (*medtypes.MedicationDTO, error) {
	if f.getMedFn == nil {
		return nil, errFakeNotWired
	}
	return f.getMedFn(ctx, userID, id)
}

func (f *fakeAdherenceService) DeactivateMedication(ctx context.Context, userID common.UserID, id common.ID) error {
	if f.deactivateFn == nil {
		return errFakeNotWired
	}
	return f.deactivateFn(ctx, userID, id)
}
