package prometheus

import (
	"context"

	"github.com/turtacn/MedRx-Intelligence/internal/application/reminderloop"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/common"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"
)

// Adapters between the application layer's narrow telemetry hooks and the
// metric backends.  The hooks keep business packages free of Prometheus
// imports; wiring code constructs these bridges and passes them in.

// ─────────────────────────────────────────────────────────────────────────────
// Reminder dispatcher
// ─────────────────────────────────────────────────────────────────────────────

// DispatchMetrics records reminder dispatch telemetry into AppMetrics.
type DispatchMetrics struct {
	app *AppMetrics
}

var _ reminderloop.Metrics = (*DispatchMetrics)(nil)

// NewDispatchMetrics builds the dispatcher's metrics hook over the given
// application metric set.
func NewDispatchMetrics(app *AppMetrics) *DispatchMetrics {
	return &DispatchMetrics{app: app}
}

// RecordCycle records one completed dispatch cycle.
func (d *DispatchMetrics) RecordCycle(_ context.Context, scanned, dispatched int, durationMs float64) {
	d.app.ReminderCyclesTotal.WithLabelValues().Inc()
	d.app.RemindersScannedTotal.WithLabelValues().Add(float64(scanned))
	d.app.RemindersDispatchedTotal.WithLabelValues().Add(float64(dispatched))
	d.app.ReminderCycleDuration.WithLabelValues().Observe(durationMs / 1000)
}

// RecordDispatchError records a failure in the named dispatch stage.
func (d *DispatchMetrics) RecordDispatchError(_ context.Context, stage string) {
	d.app.ReminderDispatchErrors.WithLabelValues(stage).Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// Prescription extractor
// ─────────────────────────────────────────────────────────────────────────────

// The extractor merges lexicon and pattern candidates into one result, so its
// events are filed under a single strategy label.
const extractionStrategy = "combined"

// ExtractorMetrics records extractor telemetry into the shared intelligence
// sink, keeping single extractions and batch runs in the same metric
// families.
type ExtractorMetrics struct {
	sink common.ExtractionMetrics
}

var _ rxextractor.Metrics = (*ExtractorMetrics)(nil)

// NewExtractorMetrics builds the extractor's metrics hook over the
// intelligence sink.
func NewExtractorMetrics(sink common.ExtractionMetrics) *ExtractorMetrics {
	return &ExtractorMetrics{sink: sink}
}

// RecordExtraction records one extraction run.
func (e *ExtractorMetrics) RecordExtraction(ctx context.Context, recordCount int, durationMs float64, degraded bool) {
	e.sink.RecordExtraction(ctx, &common.ExtractionMetricParams{
		Strategy:    extractionStrategy,
		RecordCount: recordCount,
		DurationMs:  durationMs,
		Degraded:    degraded,
	})
}

// RecordDegraded records the reason an extraction tripped the quality gate.
func (e *ExtractorMetrics) RecordDegraded(ctx context.Context, reason string) {
	e.sink.RecordDegraded(ctx, reason)
}
