package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
)

func newMetricsProbe(t *testing.T) (*gin.Engine, prom.MetricsCollector) {
	t.Helper()
	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	app := prom.NewAppMetrics(collector)

	r := gin.New()
	r.Use(Metrics(app))
	r.GET("/api/v1/medications/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "med")
	})
	return r, collector
}

func scrapeCollector(t *testing.T, collector prom.MetricsCollector) string {
	t.Helper()
	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	r, collector := newMetricsProbe(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/medications/med-123", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := scrapeCollector(t, collector)
	assert.Contains(t, body,
		`test_http_requests_total{method="GET",path="/api/v1/medications/:id",status_code="200"} 1`,
		"path label must be the route template, not the raw URL")
	assert.Contains(t, body,
		`test_http_request_duration_seconds_count{method="GET",path="/api/v1/medications/:id"} 1`)
	assert.NotContains(t, body, "med-123")
}

func TestMetrics_ResponseSizeObserved(t *testing.T) {
	r, collector := newMetricsProbe(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/medications/med-123", nil))

	body := scrapeCollector(t, collector)
	assert.Contains(t, body,
		`test_http_response_size_bytes_sum{method="GET",path="/api/v1/medications/:id"} 3`)
}

func TestMetrics_UnmatchedRouteFoldsPathLabel(t *testing.T) {
	r, collector := newMetricsProbe(t)

	for _, probe := range []string{"/admin.php", "/wp-login", "/.env"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, probe, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	body := scrapeCollector(t, collector)
	assert.Contains(t, body,
		`test_http_requests_total{method="GET",path="unmatched",status_code="404"} 3`,
		"guessed URLs must share one series")
	assert.NotContains(t, body, "wp-login")
}

func TestMetrics_ActiveRequestsReturnToZero(t *testing.T) {
	r, collector := newMetricsProbe(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/medications/med-1", nil))

	body := scrapeCollector(t, collector)
	assert.Contains(t, body,
		`test_http_active_requests{method="GET",path="/api/v1/medications/:id"} 0`)
}

func TestMetrics_NilBundlePassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.NotPanics(t, func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
