package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

func TestRecovery_PanicBecomes500Envelope(t *testing.T) {
	logger := &recordingLogger{}
	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("slot table corrupted") })

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.ErrCodeInternal), body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, w.Body.String(), "slot table corrupted",
		"panic text must not leak to the client")
}

func TestRecovery_LogsPanicWithStack(t *testing.T) {
	logger := &recordingLogger{}
	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("slot table corrupted") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	entry, ok := logger.lastEntry()
	require.True(t, ok)
	assert.Equal(t, "error", entry.level)
	assert.Equal(t, "Handler panic recovered", entry.msg)
	assert.Equal(t, "slot table corrupted", fieldValue(entry.fields, "panic"))
	assert.NotEmpty(t, fieldValue(entry.fields, "stack"))
	assert.Equal(t, "/panic", fieldValue(entry.fields, "path"))
}

func TestRecovery_PassThroughWithoutPanic(t *testing.T) {
	logger := &recordingLogger{}
	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
	assert.Empty(t, logger.all())
}
