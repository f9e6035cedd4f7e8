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

	"github.com/turtacn/MedRx-Intelligence/internal/application/reminderloop"
	"github.com/turtacn/MedRx-Intelligence/internal/config"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/redis"
	kafkainfra "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/prometheus"
	httpiface "github.com/turtacn/MedRx-Intelligence/internal/interfaces/http"
	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
	schedtypes "github.com/turtacn/MedRx-Intelligence/pkg/types/schedule"
)

// dispatchLockName is the redis mutex serializing dispatch cycles across
// worker replicas.
const dispatchLockName = "reminder-dispatch"

// newWorkerCmd builds the command that runs the reminder worker: the
// periodic dispatch loop plus the reminder.due consumer that delivers
// alerts (delivery transport itself is out of scope, so delivery is a
// structured log entry and a metric).
func newWorkerCmd() *cobra.Command {
	var (
		once        bool
		metricsPort int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the reminder dispatch worker",
		Long: "Scans active reminders on a fixed interval, dispatches the due ones as\n" +
			"reminder.due events and pending alerts, and consumes the event stream to\n" +
			"deliver them.  Replicas coordinate through a redis lock so each cycle\n" +
			"fires exactly once.",
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
			return runWorker(cmd, cliCtx, cfg, once, metricsPort)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single dispatch cycle and exit")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "port for worker probes and /metrics")

	return cmd
}

func runWorker(cmd *cobra.Command, cliCtx *CLIContext, cfg *config.Config, once bool, metricsPort int) error {
	logger, err := newServiceLogger(cfg, cliCtx.Options)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting reminder worker",
		logging.String("version", Version),
		logging.Bool("once", once))

	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database), logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	rdb, err := redisinfra.NewClient(redisConfig(cfg.Redis), logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	producer, err := kafkainfra.NewProducer(producerConfig(cfg.Kafka), logger)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	collector, appMetrics, err := newMetrics(logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	registerPoolGauges(collector, conn, rdb, producer)

	// Dispatch loop.  The lock TTL matches the check interval so a crashed
	// holder frees the cycle for the next tick.
	pool := conn.Pool()
	locks := redisinfra.NewLockFactory(rdb, logger)
	dispatcher, err := reminderloop.NewDispatcher(
		repositories.NewReminderRepository(pool, logger),
		repositories.NewMedicationRepository(pool, logger),
		redisinfra.NewReminderStore(rdb, logger),
		reminderloop.Config{
			CheckInterval: cfg.Reminder.CheckInterval,
			DueWindow:     cfg.Reminder.DispatchWindow,
		},
		logger,
		reminderloop.WithLocker(locks.NewMutex(dispatchLockName, redisinfra.WithLockTTL(cfg.Reminder.CheckInterval))),
		reminderloop.WithEventPublisher(producer),
		reminderloop.WithMetrics(prom.NewDispatchMetrics(appMetrics)),
	)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	if once {
		if err := dispatcher.DispatchOnce(ctx, time.Now()); err != nil {
			return fmt.Errorf("dispatch cycle: %w", err)
		}
		PrintSuccess(cmd, "dispatch cycle complete")
		return nil
	}

	// Delivery side: consume reminder.due and hand each alert to the
	// notifier.
	consumer, err := kafkainfra.NewConsumer(consumerConfig(cfg, kafkainfra.TopicReminderDue), logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	if err := consumer.Subscribe(kafkainfra.TopicReminderDue,
		instrumentedHandler(appMetrics, kafkainfra.TopicReminderDue, deliverReminder(logger))); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Probe surface: health endpoints and /metrics only, no API routes.
	rcfg := httpiface.DefaultRouterConfig(logger)
	rcfg.Collector = collector
	rcfg.AppMetrics = appMetrics
	rcfg.Health = handlers.NewHealthHandler(Version, appMetrics,
		handlers.NewChecker("postgres", conn.HealthCheck),
		handlers.NewChecker("redis", rdb.Ping),
	)
	httpiface.ApplyMode("release")
	srv := httpiface.NewServer(config.ServerConfig{
		Port:            metricsPort,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}, httpiface.NewRouter(rcfg), logger)

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	if err := dispatcher.Start(ctx); err != nil {
		consumer.Close()
		return fmt.Errorf("dispatcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		dispatcher.Stop()
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
		return srv.Stop(context.Background())
	})

	err = g.Wait()
	logger.Info("reminder worker stopped")
	return err
}

// deliverReminder is the notification endpoint of the pipeline.  Transports
// (push, SMS) sit outside the platform, so delivery is a structured log
// entry that downstream shippers pick up.
func deliverReminder(logger logging.Logger) common.MessageHandler {
	log := logger.Named("notifier")
	return func(ctx context.Context, msg *common.Message) error {
		env, err := kafkainfra.MessageToEventEnvelope(msg)
		if err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}

		var due schedtypes.DueNotification
		if err := env.DecodePayload(&due); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		log.Info("reminder delivered",
			logging.String("user_id", string(due.UserID)),
			logging.String("reminder_id", string(due.ReminderID)),
			logging.String("medication", due.MedicationName),
			logging.String("dosage", due.Dosage),
			logging.String("time", due.Time),
			logging.String("date", due.Date))
		return nil
	}
}

// instrumentedHandler wraps a message handler with per-topic processing
// metrics.
func instrumentedHandler(m *prom.AppMetrics, topic string, h common.MessageHandler) common.MessageHandler {
	return func(ctx context.Context, msg *common.Message) error {
		start := time.Now()
		err := h(ctx, msg)
		prom.RecordMessageProcessed(m, topic, time.Since(start), err)
		return err
	}
}
