package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/MedRx-Intelligence/internal/testutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newUserBackedConfig builds a config with probes, metrics and one live API
// route (/api/v1/users/me) so the scoped group's middleware is exercised.
func newUserBackedConfig(t *testing.T, namespace string) (RouterConfig, prom.MetricsCollector) {
	t.Helper()

	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: namespace}, logging.NewNopLogger())
	require.NoError(t, err)
	app := prom.NewAppMetrics(collector)

	nop := logging.NewNopLogger()
	cfg := DefaultRouterConfig(nop)
	cfg.Collector = collector
	cfg.AppMetrics = app
	cfg.Health = handlers.NewHealthHandler("test", app,
		handlers.NewChecker("always_up", func(context.Context) error { return nil }))
	cfg.User = handlers.NewUserHandler(user.NewService(testutil.NewMemUserRepo(), nop), nop)
	return cfg, collector
}

func newProbeRouter(t *testing.T, namespace string) (*gin.Engine, prom.MetricsCollector) {
	t.Helper()
	cfg, collector := newUserBackedConfig(t, namespace)
	return NewRouter(cfg), collector
}

func get(engine *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter_ProbesBypassUserScope(t *testing.T) {
	engine, _ := newProbeRouter(t, "probes")

	// No X-User-ID anywhere; probes must still answer.
	assert.Equal(t, http.StatusOK, get(engine, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, get(engine, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, get(engine, "/healthz/detail", nil).Code)
}

func TestNewRouter_MetricsEndpointServesExposition(t *testing.T) {
	engine, _ := newProbeRouter(t, "exposition")

	// Generate one request so the counters have something to say.
	get(engine, "/healthz", nil)

	w := get(engine, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "exposition_http_requests_total")
}

func TestNewRouter_APIRequiresUserIdentity(t *testing.T) {
	engine, _ := newProbeRouter(t, "identity")

	w := get(engine, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestNewRouter_ScopedRequestReachesHandler(t *testing.T) {
	engine, _ := newProbeRouter(t, "scoped")

	w := get(engine, "/api/v1/users/me", map[string]string{"X-User-ID": "patient-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"patient-1"`)
}

func TestNewRouter_NilHandlersDoNotPanic(t *testing.T) {
	cfg := DefaultRouterConfig(logging.NewNopLogger())
	engine := NewRouter(cfg)

	w := get(engine, "/api/v1/medications", map[string]string{"X-User-ID": "patient-1"})
	// Route not registered: gin answers 404, nothing panics.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_RequestIDOnEveryResponse(t *testing.T) {
	engine, _ := newProbeRouter(t, "requestid")

	w := get(engine, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = get(engine, "/api/v1/users/me", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "rejected requests still carry a request id")
}

func TestNewRouter_PanicBecomesEnvelope(t *testing.T) {
	cfg := DefaultRouterConfig(logging.NewNopLogger())
	engine := NewRouter(cfg)
	engine.GET("/boom", func(*gin.Context) { panic("wiring fault") })

	w := get(engine, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code"`)
	assert.NotContains(t, w.Body.String(), "wiring fault")
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	engine, _ := newProbeRouter(t, "cors")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestNewRouter_RateLimiterBitesOnlyAPIRoutes(t *testing.T) {
	limiter := middleware.NewTokenBucketLimiter(0.001, 2, time.Minute)
	defer limiter.Stop()

	cfg, _ := newUserBackedConfig(t, "ratelimited")
	cfg.RateLimiter = limiter
	engine := NewRouter(cfg)

	scoped := map[string]string{"X-User-ID": "patient-1"}

	// Burst of 2, then deny.
	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/users/me", scoped).Code)
	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/users/me", scoped).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(engine, "/api/v1/users/me", scoped).Code)

	// Probes never consume tokens.
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, get(engine, "/healthz", nil).Code)
	}
}

func TestNewRouter_UnmatchedRoutesFoldInMetrics(t *testing.T) {
	engine, collector := newProbeRouter(t, "unmatched")

	get(engine, "/definitely/not/a/route", nil)
	get(engine, "/another/bot/probe", nil)

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `path="unmatched"`)
	assert.False(t, strings.Contains(body, "definitely"), "raw 404 paths must not become label values")
}
