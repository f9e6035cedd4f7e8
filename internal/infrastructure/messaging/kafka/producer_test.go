package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats {
	return kafka.WriterStats{}
}

func newTestProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:         []string{"localhost:9092"},
		MaxMessageBytes: 1024 * 1024,
	}
}

func newTestProducerMessage(topic, key, value string) *common.ProducerMessage {
	return &common.ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: []byte(value),
	}
}

func newTestProducer(mockWriter WriterInterface) *Producer {
	return &Producer{
		writer:  mockWriter,
		config:  newTestProducerConfig(),
		logger:  logging.NewNopLogger(),
		metrics: &ProducerMetrics{},
	}
}

func TestValidateProducerConfig_Valid(t *testing.T) {
	err := ValidateProducerConfig(newTestProducerConfig())
	assert.NoError(t, err)
}

func TestValidateProducerConfig_EmptyBrokers(t *testing.T) {
	cfg := newTestProducerConfig()
	cfg.Brokers = nil
	err := ValidateProducerConfig(cfg)
	assert.Error(t, err)
}

func TestPublish_Success(t *testing.T) {
	var capturedMsgs []kafka.Message
	mock := &mockKafkaWriter{
		writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			capturedMsgs = msgs
			return nil
		},
	}
	p := newTestProducer(mock)

	err := p.Publish(context.Background(), newTestProducerMessage(TopicReminderDue, "user-1", "v"))
	assert.NoError(t, err)
	assert.Len(t, capturedMsgs, 1)
	assert.Equal(t, TopicReminderDue, capturedMsgs[0].Topic)
	assert.Equal(t, "user-1", string(capturedMsgs[0].Key))
	assert.Equal(t, "v", string(capturedMsgs[0].Value))
	assert.Equal(t, int64(1), p.metrics.MessagesSent.Load())
}

func TestPublish_Failure(t *testing.T) {
	mock := &mockKafkaWriter{
		writeFunc: func(_ context.Context, _ ...kafka.Message) error {
			return errors.New("write failed")
		},
	}
	p := newTestProducer(mock)

	err := p.Publish(context.Background(), newTestProducerMessage(TopicReminderDue, "k", "v"))
	assert.Error(t, err)
	assert.Equal(t, int64(1), p.metrics.MessagesFailed.Load())
}

func TestPublish_RejectsEmptyTopic(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	err := p.Publish(context.Background(), newTestProducerMessage("", "k", "v"))
	assert.Error(t, err)
}

func TestPublish_RejectsOversizedMessage(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	p.config.MaxMessageBytes = 4

	err := p.Publish(context.Background(), newTestProducerMessage(TopicDoseLogged, "k", "too large"))
	assert.Error(t, err)
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	mock := &mockKafkaWriter{
		writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			errs := make(kafka.WriteErrors, len(msgs))
			errs[0] = nil
			errs[1] = errors.New("fail")
			return errs
		},
	}
	p := newTestProducer(mock)
	msgs := []*common.ProducerMessage{
		newTestProducerMessage(TopicDoseLogged, "1", "1"),
		newTestProducerMessage(TopicDoseLogged, "2", "2"),
	}

	res, err := p.PublishBatch(context.Background(), msgs)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestPublishAsync_Delivers(t *testing.T) {
	done := make(chan struct{})
	mock := &mockKafkaWriter{
		writeFunc: func(_ context.Context, _ ...kafka.Message) error {
			close(done)
			return nil
		},
	}
	p := newTestProducer(mock)
	p.PublishAsync(context.Background(), newTestProducerMessage(TopicScanUploaded, "k", "v"))

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("timeout")
	}
}

func TestGetMetrics_SnapshotFields(t *testing.T) {
	calls := 0
	mock := &mockKafkaWriter{
		writeFunc: func(_ context.Context, _ ...kafka.Message) error {
			calls++
			if calls > 1 {
				return errors.New("write failed")
			}
			return nil
		},
	}
	p := newTestProducer(mock)

	assert.NoError(t, p.Publish(context.Background(), newTestProducerMessage(TopicReminderDue, "k", "v")))
	assert.Error(t, p.Publish(context.Background(), newTestProducerMessage(TopicReminderDue, "k", "v")))

	// The snapshot carries plain fields: gauge callbacks read counters
	// straight off the returned value.
	assert.Equal(t, float64(1), float64(p.GetMetrics().MessagesSent))
	assert.Equal(t, float64(1), float64(p.GetMetrics().MessagesFailed))

	s := p.GetMetrics()
	assert.Equal(t, int64(1), s.BytesSent)
	assert.False(t, s.LastSentAt.IsZero())
}

func TestProducerClose(t *testing.T) {
	closed := false
	mock := &mockKafkaWriter{
		closeFunc: func() error {
			closed = true
			return nil
		},
	}
	p := newTestProducer(mock)

	assert.NoError(t, p.Close())
	assert.True(t, closed)

	err := p.Publish(context.Background(), newTestProducerMessage(TopicDoseLogged, "k", "v"))
	assert.Equal(t, ErrProducerClosed, err)
}
