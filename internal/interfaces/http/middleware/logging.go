package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
)

// LoggingConfig controls the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are exact request paths that are never logged.  Probe
	// endpoints belong here; they fire every few seconds and say nothing.
	SkipPaths []string

	// SlowThreshold marks requests slower than this as slow, raising their
	// log level to WARN even on success.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the logging configuration used in production.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// Logging returns middleware that emits one structured log entry per request
// after the handler chain completes.  The level follows the outcome: 5xx at
// ERROR, 4xx at WARN, slow requests at WARN, everything else at INFO.
func Logging(config LoggingConfig, logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("http")

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		query := c.Request.URL.RawQuery

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("duration", elapsed),
			logging.Int("response_bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
			logging.String("request_id", RequestIDFromGin(c)),
		}
		if query != "" {
			fields = append(fields, logging.String("query", query))
		}
		// gin collects handler errors on the context; surface the last one.
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("error", c.Errors.Last().Error()))
		}

		switch {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case status >= 400:
			logger.Warn("Request rejected", fields...)
		case config.SlowThreshold > 0 && elapsed > config.SlowThreshold:
			logger.Warn("Slow request", fields...)
		default:
			logger.Info("Request completed", fields...)
		}
	}
}
