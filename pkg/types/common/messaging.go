package common

import (
	"context"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Producer-side types
// ─────────────────────────────────────────────────────────────────────────────

// ProducerMessage is a message to be published to the event bus.  Key selects
// the partition (messages with the same key preserve relative order); Headers
// carry transport metadata such as event type and trace ID.
type ProducerMessage struct {
	Topic     string            `json:"topic"`
	Key       []byte            `json:"key,omitempty"`
	Value     []byte            `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
}

// BatchItemError records the failure of a single message within a batch
// publish.  Index refers to the position in the submitted slice.
type BatchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchPublishResult summarizes a batch publish: how many messages were
// accepted, and per-item errors for those that were not.
type BatchPublishResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []BatchItemError `json:"errors,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Consumer-side types
// ─────────────────────────────────────────────────────────────────────────────

// Message is a message received from the event bus, with its position on the
// topic and the headers it was published with.
type Message struct {
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Key       []byte            `json:"key,omitempty"`
	Value     []byte            `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// MessageHandler processes one consumed message.  Returning a non-nil error
// triggers the consumer's retry policy and, once retries are exhausted,
// dead-lettering.
type MessageHandler func(ctx context.Context, msg *Message) error

// ─────────────────────────────────────────────────────────────────────────────
// Topic configuration
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig declares a topic the platform expects to exist, with the
// retention and sizing knobs the topic manager applies on creation.  Configs
// carries any additional broker config entries verbatim.
type TopicConfig struct {
	Name              string            `json:"name"`
	NumPartitions     int               `json:"num_partitions"`
	ReplicationFactor int               `json:"replication_factor"`
	RetentionMs       int64             `json:"retention_ms,omitempty"`
	CleanupPolicy     string            `json:"cleanup_policy,omitempty"`
	MaxMessageBytes   int               `json:"max_message_bytes,omitempty"`
	Configs           map[string]string `json:"configs,omitempty"`
}
