package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// readinessTimeout bounds a readiness sweep; a dependency slower than this
// is reported unhealthy rather than stalling the probe.
const readinessTimeout = 5 * time.Second

// detailedTimeout bounds the operator-facing detail sweep.
const detailedTimeout = 10 * time.Second

// HealthChecker reports one dependency's health.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function into a HealthChecker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewChecker wraps fn as a named HealthChecker.
func NewChecker(name string, fn func(ctx context.Context) error) CheckerFunc {
	return CheckerFunc{name: name, fn: fn}
}

func (c CheckerFunc) Name() string                    { return c.name }
func (c CheckerFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// HealthHandler serves the Kubernetes probes and the operator detail view.
type HealthHandler struct {
	checkers []HealthChecker
	metrics  *prom.AppMetrics
	version  string
	startAt  time.Time
}

// NewHealthHandler creates the handler.  Each checker becomes a component in
// the readiness answer; metrics may be nil.
func NewHealthHandler(version string, metrics *prom.AppMetrics, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		metrics:  metrics,
		version:  version,
		startAt:  time.Now(),
	}
}

// RegisterRoutes mounts the probe routes at the root, outside the scoped API.
func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/healthz/detail", h.Detailed)
}

// LivenessResponse answers the liveness probe.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadinessResponse answers the readiness probe.
type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// ComponentCheck is one dependency's state within a probe answer.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DetailedResponse is the operator view: readiness plus version and uptime.
type DetailedResponse struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version"`
	Uptime     string                    `json:"uptime"`
	Components map[string]ComponentCheck `json:"components"`
}

// Liveness handles GET /healthz.  It checks nothing beyond the process
// being able to answer; dependency state belongs to readiness.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz.  All dependencies healthy yields 200; any
// failure yields 503 so the load balancer stops routing here.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if len(h.checkers) == 0 {
		c.JSON(http.StatusOK, ReadinessResponse{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	components, allHealthy := h.checkAll(ctx)

	if allHealthy {
		c.JSON(http.StatusOK, ReadinessResponse{Status: "ready", Components: components})
		return
	}
	c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Components: components})
}

// Detailed handles GET /healthz/detail.
func (h *HealthHandler) Detailed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), detailedTimeout)
	defer cancel()

	components, allHealthy := h.checkAll(ctx)

	resp := DetailedResponse{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startAt).Truncate(time.Second).String(),
		Components: components,
	}
	status := http.StatusOK
	if !allHealthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// checkAll probes every dependency concurrently and feeds the health gauge.
func (h *HealthHandler) checkAll(ctx context.Context) (map[string]ComponentCheck, bool) {
	results := make(map[string]ComponentCheck, len(h.checkers))
	allHealthy := true

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(chk HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := chk.Check(ctx)
			latency := time.Since(start)

			check := ComponentCheck{
				Status:  "healthy",
				Latency: latency.Truncate(time.Microsecond).String(),
			}
			if err != nil {
				check.Status = "unhealthy"
				check.Error = err.Error()
			}

			if h.metrics != nil {
				prom.SetHealthStatus(h.metrics, chk.Name(), err == nil)
			}

			mu.Lock()
			results[chk.Name()] = check
			if err != nil {
				allHealthy = false
			}
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results, allHealthy
}
