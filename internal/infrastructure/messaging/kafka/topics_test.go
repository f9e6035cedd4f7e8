package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	deleteFunc func(topics ...string) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	closeFunc  func() error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) DeleteTopics(topics ...string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func newTestTopicManager(mock ConnInterface) *TopicManager {
	return &TopicManager{
		conn:   mock,
		logger: logging.NewNopLogger(),
	}
}

func TestTopicConstants(t *testing.T) {
	assert.Equal(t, "reminder.due", TopicReminderDue)
	assert.Equal(t, "medication.extracted", TopicMedicationExtracted)
}

func TestDefaultTopics(t *testing.T) {
	defaults := DefaultTopics()
	assert.Len(t, defaults, 8)
	for _, cfg := range defaults {
		assert.NotEmpty(t, cfg.Name)
		assert.Greater(t, cfg.NumPartitions, 0)
		assert.Greater(t, cfg.ReplicationFactor, 0)
	}
}

func TestCreateTopic_Success(t *testing.T) {
	mock := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			assert.Len(t, topics, 1)
			assert.Equal(t, TopicDoseLogged, topics[0].Topic)
			return nil
		},
	}
	m := newTestTopicManager(mock)

	err := m.CreateTopic(context.Background(), common.TopicConfig{
		Name:          TopicDoseLogged,
		NumPartitions: 3, ReplicationFactor: 1,
	})
	assert.NoError(t, err)
}

func TestCreateTopic_RejectsInvalidConfig(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{})

	err := m.CreateTopic(context.Background(), common.TopicConfig{Name: ""})
	assert.Error(t, err)

	err = m.CreateTopic(context.Background(), common.TopicConfig{Name: "x", NumPartitions: 0, ReplicationFactor: 1})
	assert.Error(t, err)
}

func TestCreateTopic_AlreadyExists(t *testing.T) {
	mock := &mockKafkaConn{
		createFunc: func(_ ...kafka.TopicConfig) error {
			return assert.AnError
		},
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: topics[0]}}, nil
		},
	}
	m := newTestTopicManager(mock)

	err := m.CreateTopic(context.Background(), common.TopicConfig{
		Name:          TopicReminderDue,
		NumPartitions: 3, ReplicationFactor: 1,
	})
	assert.NoError(t, err)
}

func TestDeleteTopic_Success(t *testing.T) {
	mock := &mockKafkaConn{
		deleteFunc: func(topics ...string) error {
			assert.Equal(t, "obsolete", topics[0])
			return nil
		},
	}
	m := newTestTopicManager(mock)
	assert.NoError(t, m.DeleteTopic(context.Background(), "obsolete"))
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	payload := MedicationExtractedPayload{
		UserID:           "user-1",
		MedicationIDs:    []string{"med-1", "med-2"},
		MedicationsFound: 2,
		QualityScore:     87.5,
	}
	env, err := NewEventEnvelope("medication.extracted", "apiserver", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "v1", env.SchemaVersion)

	msg, err := env.ToMessage(TopicMedicationExtracted, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, TopicMedicationExtracted, msg.Topic)
	assert.Equal(t, []byte("user-1"), msg.Key)
	assert.Equal(t, "medication.extracted", msg.Headers["event_type"])

	decodedEnv, err := MessageToEventEnvelope(&common.Message{Value: msg.Value})
	assert.NoError(t, err)

	var decoded MedicationExtractedPayload
	assert.NoError(t, decodedEnv.DecodePayload(&decoded))
	assert.Equal(t, "user-1", decoded.UserID)
	assert.Equal(t, []string{"med-1", "med-2"}, decoded.MedicationIDs)
	assert.InDelta(t, 87.5, decoded.QualityScore, 0.001)
}

func TestMessageToEventEnvelope_EmptyValue(t *testing.T) {
	_, err := MessageToEventEnvelope(&common.Message{})
	assert.Error(t, err)
}
