// Package config provides configuration loading, defaults, and validation for
// the MedRx-Intelligence platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "medrx"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "medrx-workers"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "prescription-scans"
	DefaultMinIORegion   = "us-east-1"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 10

	DefaultExtractorMinQuality       = 50.0
	DefaultExtractorMaxTextLength    = 20000
	DefaultExtractorBatchConcurrency = 4

	DefaultReminderCheckInterval = 30 * time.Second
	DefaultReminderWindow        = time.Minute
	DefaultReminderStoreCapacity = 10000

	DefaultScanMaxSizeBytes = 10 << 20 // 10 MiB
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate() so that
// optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "medrx"
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 24 * time.Hour
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = DefaultMinIORegion
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Extractor ─────────────────────────────────────────────────────────────
	if cfg.Extractor.MinQualityScore == 0 {
		// 0 would accept arbitrary noise; an explicit 0 is indistinguishable
		// from unset and gets the platform default.
		cfg.Extractor.MinQualityScore = DefaultExtractorMinQuality
	}
	if cfg.Extractor.MaxTextLength == 0 {
		cfg.Extractor.MaxTextLength = DefaultExtractorMaxTextLength
	}
	if cfg.Extractor.BatchConcurrency == 0 {
		cfg.Extractor.BatchConcurrency = DefaultExtractorBatchConcurrency
	}

	// ── Reminder ──────────────────────────────────────────────────────────────
	if cfg.Reminder.CheckInterval == 0 {
		cfg.Reminder.CheckInterval = DefaultReminderCheckInterval
	}
	if cfg.Reminder.DispatchWindow == 0 {
		cfg.Reminder.DispatchWindow = DefaultReminderWindow
	}
	if cfg.Reminder.StoreCapacity == 0 {
		cfg.Reminder.StoreCapacity = DefaultReminderStoreCapacity
	}

	// ── Scan ──────────────────────────────────────────────────────────────────
	if cfg.Scan.MaxSizeBytes == 0 {
		cfg.Scan.MaxSizeBytes = DefaultScanMaxSizeBytes
	}
	if len(cfg.Scan.AllowedContentTypes) == 0 {
		cfg.Scan.AllowedContentTypes = []string{"image/png", "image/jpeg", "application/pdf"}
	}
}
