package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/config"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/redis"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	minioinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/storage/minio"
	intelcommon "github.com/turtacn/MedRx-Intelligence/internal/intelligence/common"
	httpiface "github.com/turtacn/MedRx-Intelligence/internal/interfaces/http"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/middleware"
)

// Per-user API budget: sustained requests per second and burst headroom.
const (
	apiRateLimit = 50
	apiRateBurst = 100
)

// newServeCmd builds the command that runs the HTTP API server with its full
// dependency graph: postgres, redis, kafka, minio, metrics and the
// extraction pipeline.
func newServeCmd() *cobra.Command {
	var applyMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: "Starts the REST API: prescription digitization, scan intake, medication\n" +
			"management, dose tracking and reminder queries, plus health probes and\n" +
			"Prometheus metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := requireConfig(cliCtx)
			if err != nil {
				return err
			}
			return runServe(cmd, cliCtx, cfg, applyMigrations)
		},
	}

	cmd.Flags().BoolVar(&applyMigrations, "migrate", false, "apply pending schema migrations before serving")

	return cmd
}

func runServe(cmd *cobra.Command, cliCtx *CLIContext, cfg *config.Config, applyMigrations bool) error {
	logger, err := newServiceLogger(cfg, cliCtx.Options)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting api server",
		logging.String("version", Version),
		logging.String("commit", GitCommit))

	// Infrastructure, outermost first.
	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	if applyMigrations {
		if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	rdb, err := redisinfra.NewClient(redisConfig(cfg.Redis), logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	objStore, err := minioinfra.NewClient(minioConfig(cfg.MinIO), logger)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}

	producer, err := kafkainfra.NewProducer(producerConfig(cfg.Kafka), logger)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	topics, err := kafkainfra.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return fmt.Errorf("kafka topics: %w", err)
	}
	defer topics.Close()
	if cfg.Kafka.AutoCreateTopics {
		if err := topics.EnsureDefaultTopics(ctx); err != nil {
			logger.Warn("topic provisioning failed; continuing with existing topics", logging.Err(err))
		}
	}

	// Telemetry.
	collector, appMetrics, err := newMetrics(logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	registerPoolGauges(collector, conn, rdb, producer)

	extractionSink, err := intelcommon.NewPrometheusExtractionMetrics(collector.Registerer())
	if err != nil {
		return fmt.Errorf("extraction metrics: %w", err)
	}

	// Extraction pipeline with the redis result cache in front.
	extractor, err := newExtractor(cfg.Extractor, prom.NewExtractorMetrics(extractionSink), logger)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	cached := prescription.NewCachedExtractor(
		extractor,
		redisinfra.NewRedisCache(rdb, logger),
		cfg.Redis.DefaultTTL,
		logger,
		prescription.WithCacheMetrics(extractionSink),
	)

	// Domain services over the postgres repositories.
	pool := conn.Pool()
	users := user.NewService(repositories.NewUserRepository(pool, logger), logger)
	medications := medication.NewService(repositories.NewMedicationRepository(pool, logger), logger)
	reminderRepo := repositories.NewReminderRepository(pool, logger)
	schedules := schedule.NewService(reminderRepo, logger)
	doseLogs := repositories.NewDoseLogRepository(pool, logger)

	// Application services.
	prescriptions, err := prescription.NewService(cached, users, medications, schedules, logger,
		prescription.WithScanArchive(minioinfra.NewScanArchive(objStore, logger)),
		prescription.WithEventPublisher(producer),
		prescription.WithMaxScanBytes(int(cfg.Scan.MaxSizeBytes)),
		prescription.WithBatchConcurrency(cfg.Extractor.BatchConcurrency),
	)
	if err != nil {
		return fmt.Errorf("prescription service: %w", err)
	}

	adherenceSvc, err := adherence.NewService(users, medications, schedules, reminderRepo, doseLogs, logger,
		adherence.WithActiveReminderStore(redisinfra.NewReminderStore(rdb, logger)),
		adherence.WithEventPublisher(producer),
	)
	if err != nil {
		return fmt.Errorf("adherence service: %w", err)
	}

	// HTTP surface.
	rcfg := httpiface.DefaultRouterConfig(logger)
	rcfg.Collector = collector
	rcfg.AppMetrics = appMetrics
	rcfg.Prescription = handlers.NewPrescriptionHandler(prescriptions, appMetrics, logger)
	rcfg.Medication = handlers.NewMedicationHandler(adherenceSvc, logger)
	rcfg.Adherence = handlers.NewAdherenceHandler(adherenceSvc, appMetrics, logger)
	rcfg.Reminder = handlers.NewReminderHandler(adherenceSvc, logger)
	rcfg.User = handlers.NewUserHandler(users, logger)
	rcfg.Health = handlers.NewHealthHandler(Version, appMetrics,
		handlers.NewChecker("postgres", conn.HealthCheck),
		handlers.NewChecker("redis", rdb.Ping),
		handlers.NewChecker("minio", func(ctx context.Context) error {
			if st := objStore.HealthCheck(ctx); !st.Healthy {
				return fmt.Errorf("bucket probe failed: %s", st.Error)
			}
			return nil
		}),
		handlers.NewChecker("kafka", func(ctx context.Context) error {
			_, err := topics.ListTopics(ctx)
			return err
		}),
	)
	rcfg.RateLimiter = middleware.NewTokenBucketLimiter(apiRateLimit, apiRateBurst, 5*time.Minute)
	rcfg.RateLimit.KeyFunc = middleware.UserKey

	httpiface.ApplyMode(cfg.Server.Mode)
	srv := httpiface.NewServer(cfg.Server, httpiface.NewRouter(rcfg), logger)

	// Log config-file edits; settings apply on the next restart.
	if cliCtx.ConfigPath != "" {
		config.Watch(cliCtx.ConfigPath, func(next *config.Config) {
			logger.Info("configuration file changed; settings apply on restart",
				logging.String("path", cliCtx.ConfigPath),
				logging.String("log_level", next.Log.Level))
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.Background())
	})

	err = g.Wait()
	logger.Info("api server stopped")
	return err
}
