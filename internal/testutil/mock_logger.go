// Package testutil provides shared test doubles for MedRx-Intelligence:
// a recording logger and in-memory repository fakes with the same lookup
// semantics as the SQL implementations.  Tests that need to inject a
// failure embed a fake and override the single method they care about.
package testutil

import (
	"sync"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
)

// LogMessage is a single log entry captured by MockLogger.  Fields holds the
// logger's bound fields followed by the per-call fields.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

type logSink struct {
	mu       sync.Mutex
	messages []LogMessage
}

// MockLogger implements logging.Logger and records every entry so tests can
// assert on logging behavior.  Children created via With and Named share the
// parent's record.
type MockLogger struct {
	sink  *logSink
	bound []logging.Field
}

// NewMockLogger creates an empty recording logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &logSink{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.bound)+len(fields))
	all = append(all, m.bound...)
	all = append(all, fields...)

	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.messages = append(m.sink.messages, LogMessage{Level: level, Message: msg, Fields: all})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	child := &MockLogger{sink: m.sink}
	child.bound = append(child.bound, m.bound...)
	child.bound = append(child.bound, fields...)
	return child
}

func (m *MockLogger) Named(_ string) logging.Logger {
	return &MockLogger{sink: m.sink, bound: m.bound}
}

// Messages returns a copy of every recorded entry, oldest first.
func (m *MockLogger) Messages() []LogMessage {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	out := make([]LogMessage, len(m.sink.messages))
	copy(out, m.sink.messages)
	return out
}

// Clear discards all recorded entries.
func (m *MockLogger) Clear() {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.messages = m.sink.messages[:0]
}

// HasMessage reports whether an entry with the given level and message was
// recorded.
func (m *MockLogger) HasMessage(level, msg string) bool {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	for _, e := range m.sink.messages {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

// CountLevel returns how many entries were recorded at the given level.
func (m *MockLogger) CountLevel(level string) int {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	n := 0
	for _, e := range m.sink.messages {
		if e.Level == level {
			n++
		}
	}
	return n
}
