// Package config defines all configuration structures for the MedRx-Intelligence
// platform.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	AutoOffsetReset   string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	ProducerRetries   int      `mapstructure:"producer_retries"`
	BatchSize         int      `mapstructure:"batch_size"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	NumPartitions     int      `mapstructure:"num_partitions"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`

	// ScanRetentionDays expires archived scans after the given number of
	// days via a bucket lifecycle rule.  Zero retains scans indefinitely.
	ScanRetentionDays int `mapstructure:"scan_retention_days"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoffMS time.Duration `mapstructure:"retry_backoff_ms"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ExtractorConfig holds medication-extraction tunables.
type ExtractorConfig struct {
	// MinQualityScore is the minimum text-quality score (length plus keyword
	// bonuses, halved for noisy text) a prescription must reach.  Text
	// scoring below it is rejected with a degraded response.
	MinQualityScore float64 `mapstructure:"min_quality_score"`

	// StrictNameMatch disables substring-based candidate grouping in the
	// merger; only exact (case-insensitive) name matches are merged.
	StrictNameMatch bool `mapstructure:"strict_name_match"`

	// MaxTextLength caps accepted prescription text; longer input is rejected.
	MaxTextLength int `mapstructure:"max_text_length"`

	// BatchConcurrency bounds the number of texts processed in parallel by
	// batch digitization.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// ReminderConfig holds reminder-dispatch loop parameters.
type ReminderConfig struct {
	// CheckInterval is the period between dispatch scans.
	CheckInterval time.Duration `mapstructure:"check_interval"`

	// DispatchWindow is how far past its wall-clock time a reminder is still
	// considered due.
	DispatchWindow time.Duration `mapstructure:"dispatch_window"`

	// StoreCapacity bounds the in-memory active-reminder store.  The Redis
	// store ignores this value.
	StoreCapacity int `mapstructure:"store_capacity"`
}

// ScanConfig holds prescription-scan intake limits.
type ScanConfig struct {
	MaxSizeBytes        int64    `mapstructure:"max_size_bytes"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Scan      ScanConfig      `mapstructure:"scan"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// MinIO
	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Extractor
	if c.Extractor.MinQualityScore < 0 {
		return fmt.Errorf("config: extractor.min_quality_score must be ≥ 0, got %f", c.Extractor.MinQualityScore)
	}
	if c.Extractor.MaxTextLength < 1 {
		return fmt.Errorf("config: extractor.max_text_length must be ≥ 1, got %d", c.Extractor.MaxTextLength)
	}
	if c.Extractor.BatchConcurrency < 1 {
		return fmt.Errorf("config: extractor.batch_concurrency must be ≥ 1, got %d", c.Extractor.BatchConcurrency)
	}

	// Reminder
	if c.Reminder.CheckInterval <= 0 {
		return fmt.Errorf("config: reminder.check_interval must be positive, got %s", c.Reminder.CheckInterval)
	}
	if c.Reminder.DispatchWindow <= 0 {
		return fmt.Errorf("config: reminder.dispatch_window must be positive, got %s", c.Reminder.DispatchWindow)
	}
	if c.Reminder.StoreCapacity < 1 {
		return fmt.Errorf("config: reminder.store_capacity must be ≥ 1, got %d", c.Reminder.StoreCapacity)
	}

	// Scan
	if c.Scan.MaxSizeBytes < 1 {
		return fmt.Errorf("config: scan.max_size_bytes must be ≥ 1, got %d", c.Scan.MaxSizeBytes)
	}

	return nil
}
