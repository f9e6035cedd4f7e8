package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggingProbe(cfg LoggingConfig, logger *recordingLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logging(cfg, logger))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/slow", func(c *gin.Context) {
		time.Sleep(30 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestLogging_SuccessAtInfo(t *testing.T) {
	logger := &recordingLogger{}
	r := loggingProbe(DefaultLoggingConfig(), logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?verbose=1", nil))

	entry, ok := logger.lastEntry()
	require.True(t, ok)
	assert.Equal(t, "info", entry.level)
	assert.Equal(t, "Request completed", entry.msg)
	assert.Equal(t, http.MethodGet, fieldValue(entry.fields, "method"))
	assert.Equal(t, "/ok", fieldValue(entry.fields, "path"))
	assert.Equal(t, http.StatusOK, fieldValue(entry.fields, "status"))
	assert.Equal(t, "verbose=1", fieldValue(entry.fields, "query"))
	assert.Equal(t, len("fine"), fieldValue(entry.fields, "response_bytes"))
	assert.NotEmpty(t, fieldValue(entry.fields, "request_id"))
}

func TestLogging_ClientErrorAtWarn(t *testing.T) {
	logger := &recordingLogger{}
	r := loggingProbe(DefaultLoggingConfig(), logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	entry, ok := logger.lastEntry()
	require.True(t, ok)
	assert.Equal(t, "warn", entry.level)
	assert.Equal(t, "Request rejected", entry.msg)
	assert.Equal(t, http.StatusNotFound, fieldValue(entry.fields, "status"))
}

func TestLogging_ServerErrorAtError(t *testing.T) {
	logger := &recordingLogger{}
	r := loggingProbe(DefaultLoggingConfig(), logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entry, ok := logger.lastEntry()
	require.True(t, ok)
	assert.Equal(t, "error", entry.level)
	assert.Equal(t, "Request failed", entry.msg)
}

func TestLogging_SlowRequestAtWarn(t *testing.T) {
	logger := &recordingLogger{}
	cfg := DefaultLoggingConfig()
	cfg.SlowThreshold = 5 * time.Millisecond
	r := loggingProbe(cfg, logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	entry, ok := logger.lastEntry()
	require.True(t, ok)
	assert.Equal(t, "warn", entry.level)
	assert.Equal(t, "Slow request", entry.msg)
}

func TestLogging_SkipPaths(t *testing.T) {
	logger := &recordingLogger{}
	r := loggingProbe(DefaultLoggingConfig(), logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Empty(t, logger.all(), "probe endpoints should not be logged")
}

func TestLogging_NilLoggerDoesNotPanic(t *testing.T) {
	r := gin.New()
	r.Use(Logging(DefaultLoggingConfig(), nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.NotPanics(t, func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	})
}
