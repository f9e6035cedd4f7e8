package cli

// Wiring helpers shared by the serve and worker commands: mapping the flat
// platform configuration onto infrastructure constructor configs, adapting
// the structured logger to the extractor's key/value interface and exposing
// connection-pool statistics on the metrics registry.

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/turtacn/MedRx-Intelligence/internal/config"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres"
	redisinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/redis"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	minioinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"
)

// metricsNamespace prefixes every metric family exposed by this binary.
const metricsNamespace = "medrx"

// newServiceLogger builds the configured logger for long-running commands.
// The CLI's console logger stays in place until this succeeds, so startup
// failures are still reported somewhere visible.
func newServiceLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	logCfg := logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	}
	if opts.LogLevel != "" {
		logCfg.Level = opts.LogLevel
	}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	return logging.NewLogger(logCfg)
}

// ─────────────────────────────────────────────────────────────────────────────
// Config mapping
// ─────────────────────────────────────────────────────────────────────────────

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.DBName,
		Username:        c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		MaxConns:        int32(c.MaxConns),
		MinConns:        int32(c.MinConns),
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

func redisConfig(c config.RedisConfig) *redisinfra.RedisConfig {
	return &redisinfra.RedisConfig{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

func minioConfig(c config.MinIOConfig) *minioinfra.MinIOConfig {
	return &minioinfra.MinIOConfig{
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKey,
		SecretAccessKey: c.SecretKey,
		UseSSL:          c.UseSSL,
		Region:          c.Region,
		Bucket:          c.Bucket,
		PresignExpiry:   c.PresignExpiry,
		RetentionDays:   c.ScanRetentionDays,
	}
}

func producerConfig(c config.KafkaConfig) kafkainfra.ProducerConfig {
	pc := kafkainfra.ProducerConfig{
		Brokers:    c.Brokers,
		Acks:       "all",
		MaxRetries: c.ProducerRetries,
		BatchSize:  c.BatchSize,
	}
	if c.TimeoutMS > 0 {
		timeout := time.Duration(c.TimeoutMS) * time.Millisecond
		pc.WriteTimeout = timeout
		pc.ReadTimeout = timeout
	}
	return pc
}

func consumerConfig(cfg *config.Config, topics ...string) kafkainfra.ConsumerConfig {
	cc := kafkainfra.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          topics,
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		RetryConfig: kafkainfra.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoffMS,
			DeadLetterTopic: kafkainfra.TopicDeadLetterReminder,
		},
	}
	if cfg.Kafka.TimeoutMS > 0 {
		cc.SessionTimeout = time.Duration(cfg.Kafka.TimeoutMS) * time.Millisecond
	}
	return cc
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics and extractor assembly
// ─────────────────────────────────────────────────────────────────────────────

// newMetrics builds the process-wide collector and the application metric
// set every component records into.
func newMetrics(logger logging.Logger) (prom.MetricsCollector, *prom.AppMetrics, error) {
	collector, err := prom.NewMetricsCollector(prom.CollectorConfig{
		Namespace:            metricsNamespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return collector, prom.NewAppMetrics(collector), nil
}

// newExtractor assembles the extraction pipeline from the default lexicons
// and the platform extractor settings.
func newExtractor(c config.ExtractorConfig, metrics rxextractor.Metrics, logger logging.Logger) (rxextractor.Extractor, error) {
	exCfg := rxextractor.DefaultExtractorConfig()
	if c.MinQualityScore > 0 {
		exCfg.MinQualityScore = c.MinQualityScore
	}
	if c.MaxTextLength > 0 {
		exCfg.MaxTextLength = c.MaxTextLength
	}
	if c.BatchConcurrency > 0 {
		exCfg.BatchConcurrency = c.BatchConcurrency
	}
	exCfg.StrictNameMatch = c.StrictNameMatch

	return rxextractor.NewExtractor(
		rxextractor.NewDefaultMedicationLexicon(),
		rxextractor.NewDefaultFrequencyLexicon(),
		exCfg,
		metrics,
		newKVLogger(logger),
	)
}

// kvLogger adapts the platform Logger to the extractor's key/value logging
// interface.
type kvLogger struct {
	inner logging.Logger
}

func newKVLogger(l logging.Logger) *kvLogger {
	if l == nil {
		l = logging.NewNopLogger()
	}
	return &kvLogger{inner: l}
}

var _ rxextractor.Logger = (*kvLogger)(nil)

func (l *kvLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, kvFields(keysAndValues)...)
}

func (l *kvLogger) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, kvFields(keysAndValues)...)
}

func (l *kvLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, kvFields(keysAndValues)...)
}

func (l *kvLogger) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Error(msg, kvFields(keysAndValues)...)
}

// kvFields pairs up a variadic key/value list into typed fields.  A trailing
// unpaired value is kept under the key "extra" rather than dropped.
func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields = append(fields, logging.Any(key, keysAndValues[i+1]))
	}
	if len(keysAndValues)%2 == 1 {
		fields = append(fields, logging.Any("extra", keysAndValues[len(keysAndValues)-1]))
	}
	return fields
}

// ─────────────────────────────────────────────────────────────────────────────
// Pool statistics
// ─────────────────────────────────────────────────────────────────────────────

// registerPoolGauges exposes connection-pool and producer counters on the
// shared registry.  Everything is read lazily at scrape time; nil components
// are simply skipped.
func registerPoolGauges(collector prom.MetricsCollector, conn *postgres.Connection, rdb *redisinfra.Client, producer *kafkainfra.Producer) {
	gauge := func(name, help string, fn func() float64) {
		collector.MustRegister(promclient.NewGaugeFunc(promclient.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, fn))
	}
	counter := func(name, help string, fn func() float64) {
		collector.MustRegister(promclient.NewCounterFunc(promclient.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, fn))
	}

	if conn != nil {
		gauge("db_pool_acquired_conns", "PostgreSQL pool connections in use", func() float64 {
			return float64(conn.Stat().AcquiredConns())
		})
		gauge("db_pool_idle_conns", "PostgreSQL pool connections idle", func() float64 {
			return float64(conn.Stat().IdleConns())
		})
		gauge("db_pool_total_conns", "PostgreSQL pool connections open", func() float64 {
			return float64(conn.Stat().TotalConns())
		})
	}

	if rdb != nil {
		gauge("redis_pool_total_conns", "Redis pool connections open", func() float64 {
			return float64(rdb.PoolStats().TotalConns)
		})
		gauge("redis_pool_idle_conns", "Redis pool connections idle", func() float64 {
			return float64(rdb.PoolStats().IdleConns)
		})
		counter("redis_pool_hits_total", "Redis pool connection reuses", func() float64 {
			return float64(rdb.PoolStats().Hits)
		})
		counter("redis_pool_misses_total", "Redis pool connection creations", func() float64 {
			return float64(rdb.PoolStats().Misses)
		})
	}

	if producer != nil {
		counter("kafka_messages_sent_total", "Messages published to the bus", func() float64 {
			return float64(producer.GetMetrics().MessagesSent)
		})
		counter("kafka_messages_failed_total", "Messages that failed to publish", func() float64 {
			return float64(producer.GetMetrics().MessagesFailed)
		})
	}
}
