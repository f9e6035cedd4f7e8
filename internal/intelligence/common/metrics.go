package common

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// ExtractionMetrics defines the unified telemetry API for the intelligence
// layer. The extraction pipeline and the batch engine record through this
// interface so the backing implementation (Prometheus, in-memory, noop) can
// be swapped without touching business code.
type ExtractionMetrics interface {
	// RecordExtraction records a single prescription extraction.
	RecordExtraction(ctx context.Context, params *ExtractionMetricParams)

	// RecordDegraded records an extraction that tripped the quality gate.
	RecordDegraded(ctx context.Context, reason string)

	// RecordBatchProcessing records a batch processing run.
	RecordBatchProcessing(ctx context.Context, params *BatchMetricParams)

	// RecordCacheAccess records a hit or miss on a result cache.
	RecordCacheAccess(ctx context.Context, hit bool, cacheName string)

	// RecordCircuitBreakerStateChange records a circuit-breaker transition.
	RecordCircuitBreakerStateChange(ctx context.Context, name, fromState, toState string)

	// GetExtractionLatencyHistogram returns the latency histogram for SLO
	// monitoring.
	GetExtractionLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time statistics snapshot.
	GetCurrentStats() *ExtractionStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	// Observe records a latency sample in milliseconds.
	Observe(durationMs float64)

	// Percentile returns the value at the given percentile (0-100).
	Percentile(p float64) float64

	// Count returns the total number of observed samples.
	Count() int64

	// Sum returns the sum of all observed values.
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// ExtractionMetricParams carries the data for one extraction event.
type ExtractionMetricParams struct {
	Strategy     string  `json:"strategy"`
	RecordCount  int     `json:"record_count"`
	DurationMs   float64 `json:"duration_ms"`
	QualityScore float64 `json:"quality_score"`
	Degraded     bool    `json:"degraded"`
	TextLength   int     `json:"text_length"`
}

// BatchMetricParams carries the data for one batch processing run.
type BatchMetricParams struct {
	BatchName         string  `json:"batch_name"`
	TotalItems        int     `json:"total_items"`
	SuccessItems      int     `json:"success_items"`
	FailedItems       int     `json:"failed_items"`
	TimeoutItems      int     `json:"timeout_items"`
	CancelledItems    int     `json:"cancelled_items"`
	TotalDurationMs   float64 `json:"total_duration_ms"`
	AvgItemDurationMs float64 `json:"avg_item_duration_ms"`
	MaxConcurrency    int     `json:"max_concurrency"`
}

// ExtractionStats is a point-in-time snapshot of intelligence-layer metrics.
type ExtractionStats struct {
	TotalExtractions     int64             `json:"total_extractions"`
	DegradedExtractions  int64             `json:"degraded_extractions"`
	TotalRecords         int64             `json:"total_records"`
	AvgLatencyMs         float64           `json:"avg_latency_ms"`
	P50LatencyMs         float64           `json:"p50_latency_ms"`
	P95LatencyMs         float64           `json:"p95_latency_ms"`
	P99LatencyMs         float64           `json:"p99_latency_ms"`
	CacheHitRate         float64           `json:"cache_hit_rate"`
	DegradedReasons      map[string]int64  `json:"degraded_reasons"`
	CircuitBreakerStates map[string]string `json:"circuit_breaker_states"`
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

const metricsPrefix = "medrx_intelligence_"

var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// degradedReasonLabel buckets free-text degradation reasons into a bounded
// label set so Prometheus cardinality stays fixed.
func degradedReasonLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "empty input"):
		return "empty_input"
	case strings.HasPrefix(reason, "text quality"):
		return "low_quality"
	case strings.Contains(reason, "not look like a prescription"):
		return "not_prescription"
	default:
		return "other"
	}
}

type prometheusExtractionMetrics struct {
	extractionLatency   *prometheus.HistogramVec
	extractionTotal     *prometheus.CounterVec
	recordsExtracted    prometheus.Counter
	degradedTotal       *prometheus.CounterVec
	batchDuration       *prometheus.HistogramVec
	batchItemsTotal     *prometheus.CounterVec
	cacheAccessTotal    *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec

	// in-memory tracking for GetCurrentStats / GetExtractionLatencyHistogram
	latencyHist  *latencyHistogram
	totalExt     atomic.Int64
	degradedExt  atomic.Int64
	totalRecords atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	reasons      sync.Map // reason label -> *atomic.Int64
	cbStates     sync.Map // breaker name -> state string
}

// NewPrometheusExtractionMetrics creates a Prometheus-backed metrics
// collector and registers every metric with the supplied Registerer.
func NewPrometheusExtractionMetrics(registerer prometheus.Registerer) (*prometheusExtractionMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &prometheusExtractionMetrics{
		latencyHist: newLatencyHistogram(),
	}

	m.extractionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "extraction_duration_milliseconds",
		Help:    "Histogram of prescription extraction latency in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"strategy"})

	m.extractionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "extraction_total",
		Help: "Total number of prescription extractions.",
	}, []string{"strategy", "status"})

	m.recordsExtracted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricsPrefix + "medication_records_total",
		Help: "Total number of medication records produced by extraction.",
	})

	m.degradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "degraded_total",
		Help: "Total number of degraded extractions by reason.",
	}, []string{"reason"})

	m.batchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "batch_processing_duration_milliseconds",
		Help:    "Histogram of batch processing duration in milliseconds.",
		Buckets: defaultLatencyBuckets,
	}, []string{"batch_name"})

	m.batchItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batch_items_total",
		Help: "Total number of items processed in batches.",
	}, []string{"batch_name", "status"})

	m.cacheAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "cache_access_total",
		Help: "Total number of cache accesses.",
	}, []string{"cache", "result"})

	m.circuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=half_open, 2=open).",
	}, []string{"name"})

	collectors := []prometheus.Collector{
		m.extractionLatency,
		m.extractionTotal,
		m.recordsExtracted,
		m.degradedTotal,
		m.batchDuration,
		m.batchItemsTotal,
		m.cacheAccessTotal,
		m.circuitBreakerState,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *prometheusExtractionMetrics) RecordExtraction(_ context.Context, p *ExtractionMetricParams) {
	if p == nil {
		return
	}
	strategy := p.Strategy
	if strategy == "" {
		strategy = "combined"
	}
	status := "ok"
	if p.Degraded {
		status = "degraded"
	}

	m.extractionLatency.WithLabelValues(strategy).Observe(p.DurationMs)
	m.extractionTotal.WithLabelValues(strategy, status).Inc()
	m.recordsExtracted.Add(float64(p.RecordCount))

	m.latencyHist.Observe(p.DurationMs)
	m.totalExt.Add(1)
	m.totalRecords.Add(int64(p.RecordCount))
	if p.Degraded {
		m.degradedExt.Add(1)
	}
}

func (m *prometheusExtractionMetrics) RecordDegraded(_ context.Context, reason string) {
	label := degradedReasonLabel(reason)
	m.degradedTotal.WithLabelValues(label).Inc()

	v, _ := m.reasons.LoadOrStore(label, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

func (m *prometheusExtractionMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.batchDuration.WithLabelValues(p.BatchName).Observe(p.TotalDurationMs)
	m.batchItemsTotal.WithLabelValues(p.BatchName, "success").Add(float64(p.SuccessItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "failed").Add(float64(p.FailedItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "timeout").Add(float64(p.TimeoutItems))
	m.batchItemsTotal.WithLabelValues(p.BatchName, "cancelled").Add(float64(p.CancelledItems))
}

func (m *prometheusExtractionMetrics) RecordCacheAccess(_ context.Context, hit bool, cacheName string) {
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.cacheAccessTotal.WithLabelValues(cacheName, result).Inc()
}

func (m *prometheusExtractionMetrics) RecordCircuitBreakerStateChange(_ context.Context, name string, _, toState string) {
	m.cbStates.Store(name, toState)
	m.circuitBreakerState.WithLabelValues(name).Set(circuitBreakerStateToFloat(toState))
}

func (m *prometheusExtractionMetrics) GetExtractionLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *prometheusExtractionMetrics) GetCurrentStats() *ExtractionStats {
	total := m.totalExt.Load()

	var avgLatency float64
	if total > 0 {
		avgLatency = m.latencyHist.Sum() / float64(total)
	}

	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	reasons := make(map[string]int64)
	m.reasons.Range(func(key, value any) bool {
		reasons[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	cbStates := make(map[string]string)
	m.cbStates.Range(func(key, value any) bool {
		cbStates[key.(string)] = value.(string)
		return true
	})

	return &ExtractionStats{
		TotalExtractions:     total,
		DegradedExtractions:  m.degradedExt.Load(),
		TotalRecords:         m.totalRecords.Load(),
		AvgLatencyMs:         avgLatency,
		P50LatencyMs:         m.latencyHist.Percentile(50),
		P95LatencyMs:         m.latencyHist.Percentile(95),
		P99LatencyMs:         m.latencyHist.Percentile(99),
		CacheHitRate:         hitRate,
		DegradedReasons:      reasons,
		CircuitBreakerStates: cbStates,
	}
}

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopExtractionMetrics struct{}

// NewNoopExtractionMetrics returns a no-op metrics implementation.
func NewNoopExtractionMetrics() *noopExtractionMetrics {
	return &noopExtractionMetrics{}
}

func (n *noopExtractionMetrics) RecordExtraction(context.Context, *ExtractionMetricParams)          {}
func (n *noopExtractionMetrics) RecordDegraded(context.Context, string)                             {}
func (n *noopExtractionMetrics) RecordBatchProcessing(context.Context, *BatchMetricParams)          {}
func (n *noopExtractionMetrics) RecordCacheAccess(context.Context, bool, string)                    {}
func (n *noopExtractionMetrics) RecordCircuitBreakerStateChange(context.Context, string, string, string) {
}

func (n *noopExtractionMetrics) GetExtractionLatencyHistogram() LatencyHistogram {
	return newLatencyHistogram()
}

func (n *noopExtractionMetrics) GetCurrentStats() *ExtractionStats {
	return &ExtractionStats{
		DegradedReasons:      map[string]int64{},
		CircuitBreakerStates: map[string]string{},
	}
}

// ---------------------------------------------------------------------------
// In-memory implementation (for testing)
// ---------------------------------------------------------------------------

type inMemoryExtractionMetrics struct {
	mu sync.Mutex

	extractions []*ExtractionMetricParams
	batches     []*BatchMetricParams
	reasons     map[string]int64
	cacheHits   int64
	cacheMisses int64
	cbStates    map[string]string
	latencyHist *latencyHistogram
}

// NewInMemoryExtractionMetrics returns an in-memory metrics implementation
// suitable for unit tests.
func NewInMemoryExtractionMetrics() *inMemoryExtractionMetrics {
	return &inMemoryExtractionMetrics{
		reasons:     make(map[string]int64),
		cbStates:    make(map[string]string),
		latencyHist: newLatencyHistogram(),
	}
}

func (m *inMemoryExtractionMetrics) RecordExtraction(_ context.Context, p *ExtractionMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.extractions = append(m.extractions, &cp)
	m.latencyHist.observeUnlocked(p.DurationMs)
}

func (m *inMemoryExtractionMetrics) RecordDegraded(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons[reason]++
}

func (m *inMemoryExtractionMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.batches = append(m.batches, &cp)
}

func (m *inMemoryExtractionMetrics) RecordCacheAccess(_ context.Context, hit bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *inMemoryExtractionMetrics) RecordCircuitBreakerStateChange(_ context.Context, name, _, toState string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbStates[name] = toState
}

func (m *inMemoryExtractionMetrics) GetExtractionLatencyHistogram() LatencyHistogram {
	return m.latencyHist
}

func (m *inMemoryExtractionMetrics) GetCurrentStats() *ExtractionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := int64(len(m.extractions))
	var degraded, records int64
	var sumLatency float64
	for _, e := range m.extractions {
		if e.Degraded {
			degraded++
		}
		records += int64(e.RecordCount)
		sumLatency += e.DurationMs
	}

	var avgLatency float64
	if total > 0 {
		avgLatency = sumLatency / float64(total)
	}

	var hitRate float64
	if m.cacheHits+m.cacheMisses > 0 {
		hitRate = float64(m.cacheHits) / float64(m.cacheHits+m.cacheMisses)
	}

	reasonsCopy := make(map[string]int64, len(m.reasons))
	for k, v := range m.reasons {
		reasonsCopy[k] = v
	}
	cbCopy := make(map[string]string, len(m.cbStates))
	for k, v := range m.cbStates {
		cbCopy[k] = v
	}

	return &ExtractionStats{
		TotalExtractions:     total,
		DegradedExtractions:  degraded,
		TotalRecords:         records,
		AvgLatencyMs:         avgLatency,
		P50LatencyMs:         m.latencyHist.Percentile(50),
		P95LatencyMs:         m.latencyHist.Percentile(95),
		P99LatencyMs:         m.latencyHist.Percentile(99),
		CacheHitRate:         hitRate,
		DegradedReasons:      reasonsCopy,
		CircuitBreakerStates: cbCopy,
	}
}

// GetRecordedExtractions returns a copy of all recorded extraction params.
func (m *inMemoryExtractionMetrics) GetRecordedExtractions() []*ExtractionMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ExtractionMetricParams, len(m.extractions))
	for i, p := range m.extractions {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetRecordedBatches returns a copy of all recorded batch params.
func (m *inMemoryExtractionMetrics) GetRecordedBatches() []*BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*BatchMetricParams, len(m.batches))
	for i, p := range m.batches {
		cp := *p
		out[i] = &cp
	}
	return out
}

// GetDegradedReasons returns a copy of the reason counts.
func (m *inMemoryExtractionMetrics) GetDegradedReasons() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.reasons))
	for k, v := range m.reasons {
		out[k] = v
	}
	return out
}

// GetCacheHits returns the number of cache hits recorded.
func (m *inMemoryExtractionMetrics) GetCacheHits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits
}

// GetCacheMisses returns the number of cache misses recorded.
func (m *inMemoryExtractionMetrics) GetCacheMisses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheMisses
}

// GetCircuitBreakerStates returns a copy of the circuit-breaker state map.
func (m *inMemoryExtractionMetrics) GetCircuitBreakerStates() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.cbStates))
	for k, v := range m.cbStates {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// latencyHistogram — in-memory, thread-safe, percentile-capable
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.RWMutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{
		samples: make([]float64, 0, 1024),
	}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observeUnlocked(durationMs)
}

// observeUnlocked is called when the caller already holds the lock (the
// in-memory metrics implementation locks at a higher level).
func (h *latencyHistogram) observeUnlocked(durationMs float64) {
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

// Percentile returns the value at percentile p (0-100) using linear
// interpolation between the two nearest ranks.
func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.RLock()
	n := len(h.samples)
	if n == 0 {
		h.mu.RUnlock()
		return 0
	}

	// A sorted view is required; upgrade to the write lock when stale.
	if !h.sorted {
		h.mu.RUnlock()
		h.mu.Lock()
		if !h.sorted {
			sort.Float64s(h.samples)
			h.sorted = true
		}
		h.mu.Unlock()
		h.mu.RLock()
	}

	defer h.mu.RUnlock()

	if p <= 0 {
		return h.samples[0]
	}
	if p >= 100 {
		return h.samples[n-1]
	}

	rank := (p / 100) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return h.samples[n-1]
	}
	frac := rank - float64(lower)
	return h.samples[lower] + frac*(h.samples[upper]-h.samples[lower])
}

func (h *latencyHistogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func circuitBreakerStateToFloat(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// compile-time interface checks
var (
	_ ExtractionMetrics = (*prometheusExtractionMetrics)(nil)
	_ ExtractionMetrics = (*noopExtractionMetrics)(nil)
	_ ExtractionMetrics = (*inMemoryExtractionMetrics)(nil)
	_ LatencyHistogram  = (*latencyHistogram)(nil)
)
