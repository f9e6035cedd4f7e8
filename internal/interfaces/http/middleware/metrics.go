package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// unmatchedRoute is the path label recorded for requests no route claimed.
// Folding them into one label keeps probing bots from minting a metric
// series per guessed URL.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that feeds the HTTP metric families: request
// totals, latency, request/response sizes and the in-flight gauge.  The path
// label is the route template (e.g. /api/v1/medications/:id), never the raw
// URL.  A nil bundle disables recording.
func Metrics(app *prom.AppMetrics) gin.HandlerFunc {
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		method := c.Request.Method

		app.HTTPActiveRequests.WithLabelValues(method, path).Inc()
		start := time.Now()

		c.Next()

		app.HTTPActiveRequests.WithLabelValues(method, path).Dec()

		// Handlers attach their failures via c.Error; count them by code.
		for _, ginErr := range c.Errors {
			prom.RecordError(app, "http", string(pkgerrors.GetCode(ginErr.Err)))
		}

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}
		respSize := c.Writer.Size()
		if respSize < 0 {
			respSize = 0
		}

		prom.RecordHTTPRequest(app, method, path, c.Writer.Status(),
			time.Since(start), reqSize, int64(respSize))
	}
}
