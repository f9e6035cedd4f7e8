package prometheus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/common"
)

// ── DispatchMetrics ──────────────────────────────────────────────────────────

func TestDispatchMetrics_RecordCycle(t *testing.T) {
	m, c := newTestAppMetrics(t)
	bridge := NewDispatchMetrics(m)

	bridge.RecordCycle(context.Background(), 5, 3, 1500)

	output := scrape(t, c)
	assert.Contains(t, output, "test_unit_reminder_cycles_total 1")
	assert.Contains(t, output, "test_unit_reminders_scanned_total 5")
	assert.Contains(t, output, "test_unit_reminders_dispatched_total 3")
	assert.Contains(t, output, "test_unit_reminder_cycle_duration_seconds_sum 1.5")
}

func TestDispatchMetrics_RecordCycle_Accumulates(t *testing.T) {
	m, c := newTestAppMetrics(t)
	bridge := NewDispatchMetrics(m)

	bridge.RecordCycle(context.Background(), 10, 2, 100)
	bridge.RecordCycle(context.Background(), 4, 0, 50)

	output := scrape(t, c)
	assert.Contains(t, output, "test_unit_reminder_cycles_total 2")
	assert.Contains(t, output, "test_unit_reminders_scanned_total 14")
	assert.Contains(t, output, "test_unit_reminders_dispatched_total 2")
}

func TestDispatchMetrics_RecordDispatchError(t *testing.T) {
	m, c := newTestAppMetrics(t)
	bridge := NewDispatchMetrics(m)

	bridge.RecordDispatchError(context.Background(), "publish")
	bridge.RecordDispatchError(context.Background(), "publish")
	bridge.RecordDispatchError(context.Background(), "store")

	output := scrape(t, c)
	assert.Contains(t, output, `test_unit_reminder_dispatch_errors_total{stage="publish"} 2`)
	assert.Contains(t, output, `test_unit_reminder_dispatch_errors_total{stage="store"} 1`)
}

// ── ExtractorMetrics ─────────────────────────────────────────────────────────

func TestExtractorMetrics_RecordExtraction(t *testing.T) {
	sink := common.NewInMemoryExtractionMetrics()
	bridge := NewExtractorMetrics(sink)

	bridge.RecordExtraction(context.Background(), 3, 42, false)

	recorded := sink.GetRecordedExtractions()
	require.Len(t, recorded, 1)
	assert.Equal(t, "combined", recorded[0].Strategy)
	assert.Equal(t, 3, recorded[0].RecordCount)
	assert.Equal(t, 42.0, recorded[0].DurationMs)
	assert.False(t, recorded[0].Degraded)
}

func TestExtractorMetrics_RecordExtraction_Degraded(t *testing.T) {
	sink := common.NewInMemoryExtractionMetrics()
	bridge := NewExtractorMetrics(sink)

	bridge.RecordExtraction(context.Background(), 0, 10, true)
	bridge.RecordExtraction(context.Background(), 2, 20, false)

	stats := sink.GetCurrentStats()
	assert.Equal(t, int64(2), stats.TotalExtractions)
	assert.Equal(t, int64(1), stats.DegradedExtractions)
	assert.Equal(t, int64(2), stats.TotalRecords)
}

func TestExtractorMetrics_RecordDegraded(t *testing.T) {
	sink := common.NewInMemoryExtractionMetrics()
	bridge := NewExtractorMetrics(sink)

	bridge.RecordDegraded(context.Background(), "text does not look like a prescription")

	stats := sink.GetCurrentStats()
	assert.Equal(t, int64(1), stats.DegradedReasons["text does not look like a prescription"])
}
