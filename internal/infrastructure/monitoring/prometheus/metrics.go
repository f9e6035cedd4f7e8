package prometheus

import (
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Application metric set
// ─────────────────────────────────────────────────────────────────────────────

// AppMetrics bundles the service-level metric families.  The HTTP middleware,
// the scan and dose handlers, the reminder dispatcher bridge and the worker's
// consumer loop record into it; extraction quality metrics live in the
// intelligence layer and join the same registry at wiring time.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Prescription intake
	ScanIngestTotal CounterVec
	ScanSizeBytes   HistogramVec

	// Dose tracking
	DoseEventsTotal CounterVec

	// Reminder pipeline
	ReminderCyclesTotal      CounterVec
	RemindersScannedTotal    CounterVec
	RemindersDispatchedTotal CounterVec
	ReminderCycleDuration    HistogramVec
	ReminderDispatchErrors   CounterVec

	// Messaging
	MessagesProcessedTotal CounterVec
	MessageProcessDuration HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Histogram buckets, tuned per family.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDispatchDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultSizeBuckets             = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
)

// NewAppMetrics registers every family on the collector and returns the
// bundle.  Path labels must be route templates (e.g. /api/v1/medications/:id),
// never raw URLs, or the series cardinality is unbounded.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request body size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response body size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method", "path")

	// Prescription intake
	m.ScanIngestTotal = collector.RegisterCounter("scan_ingest_total", "Prescription scans received", "format", "status")
	m.ScanSizeBytes = collector.RegisterHistogram("scan_size_bytes", "Prescription scan upload size", DefaultSizeBuckets, "format")

	// Dose tracking
	m.DoseEventsTotal = collector.RegisterCounter("dose_events_total", "Dose actions recorded", "action")

	// Reminder pipeline
	m.ReminderCyclesTotal = collector.RegisterCounter("reminder_cycles_total", "Completed reminder dispatch cycles")
	m.RemindersScannedTotal = collector.RegisterCounter("reminders_scanned_total", "Reminder slots examined across cycles")
	m.RemindersDispatchedTotal = collector.RegisterCounter("reminders_dispatched_total", "Reminder alerts dispatched")
	m.ReminderCycleDuration = collector.RegisterHistogram("reminder_cycle_duration_seconds", "Reminder dispatch cycle duration", DefaultDispatchDurationBuckets)
	m.ReminderDispatchErrors = collector.RegisterCounter("reminder_dispatch_errors_total", "Reminder dispatch failures", "stage")

	// Messaging
	m.MessagesProcessedTotal = collector.RegisterCounter("messages_processed_total", "Bus messages consumed", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Bus message handling duration", DefaultHTTPDurationBuckets, "topic")

	// System health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Dependency health (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors surfaced to callers", "component", "code")

	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording helpers
// ─────────────────────────────────────────────────────────────────────────────

// RecordHTTPRequest records one completed request across the HTTP families.
// The in-flight gauge is managed by the middleware directly.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordScanIngest records one scan upload attempt.  Rejected uploads (too
// large, unsupported format) still count, under status "rejected".
func RecordScanIngest(m *AppMetrics, format string, sizeBytes int64, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.ScanIngestTotal.WithLabelValues(format, status).Inc()
	m.ScanSizeBytes.WithLabelValues(format).Observe(float64(sizeBytes))
}

// RecordDoseEvent records one dose action (take, skip, snooze).
func RecordDoseEvent(m *AppMetrics, action string) {
	m.DoseEventsTotal.WithLabelValues(action).Inc()
}

// RecordMessageProcessed records one consumed bus message.
func RecordMessageProcessed(m *AppMetrics, topic string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetHealthStatus publishes a dependency probe result.
func SetHealthStatus(m *AppMetrics, component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

// RecordError counts an error surfaced to a caller, labelled by the platform
// error code so alert rules can separate client faults from server faults.
func RecordError(m *AppMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
