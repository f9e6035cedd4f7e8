// Package http wires the REST surface: middleware chain, route groups and
// the server lifecycle around a gin engine.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates everything the route table needs.  Handlers left
// nil are skipped so partial deployments (worker-only, probe-only) can reuse
// the same constructor.
type RouterConfig struct {
	Logger logging.Logger

	// Collector serves /metrics; AppMetrics feeds the request middleware.
	// Either may be nil.
	Collector  prom.MetricsCollector
	AppMetrics *prom.AppMetrics

	Prescription *handlers.PrescriptionHandler
	Medication   *handlers.MedicationHandler
	Adherence    *handlers.AdherenceHandler
	Reminder     *handlers.ReminderHandler
	User         *handlers.UserHandler
	Health       *handlers.HealthHandler

	CORS      middleware.CORSConfig
	Logging   middleware.LoggingConfig
	UserScope middleware.UserScopeConfig

	// RateLimiter nil disables rate limiting.
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
}

// DefaultRouterConfig returns a config with the standard middleware
// defaults; callers fill in handlers and metrics.
func DefaultRouterConfig(logger logging.Logger) RouterConfig {
	return RouterConfig{
		Logger:    logger,
		CORS:      middleware.DefaultCORSConfig(),
		Logging:   middleware.DefaultLoggingConfig(),
		UserScope: middleware.DefaultUserScopeConfig(),
		RateLimit: middleware.DefaultRateLimitConfig(),
	}
}

// NewRouter builds the gin engine with the full middleware chain and route
// table.  Probes and /metrics stay outside the scoped API group so load
// balancers and Prometheus never need a user identity.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(cfg.Logging, logger),
		middleware.CORS(cfg.CORS),
		middleware.Metrics(cfg.AppMetrics),
	)

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(engine)
	}
	if cfg.Collector != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := engine.Group("/api/v1")
	api.Use(middleware.UserScope(cfg.UserScope, logger))
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}

	if cfg.Prescription != nil {
		cfg.Prescription.RegisterRoutes(api)
	}
	if cfg.Medication != nil {
		cfg.Medication.RegisterRoutes(api)
	}
	if cfg.Adherence != nil {
		cfg.Adherence.RegisterRoutes(api)
	}
	if cfg.Reminder != nil {
		cfg.Reminder.RegisterRoutes(api)
	}
	if cfg.User != nil {
		cfg.User.RegisterRoutes(api)
	}

	return engine
}
