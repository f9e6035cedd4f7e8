//go:build integration

// Cross-layer integration tests: the digitization and adherence pipelines run
// against real PostgreSQL (testcontainers) with the production repository
// implementations, so the regimen-uniqueness index, the reminder batch
// transaction and the compliance queries are exercised for real.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/MedRx-Intelligence/internal/application/adherence"
	"github.com/turtacn/MedRx-Intelligence/internal/application/prescription"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/medication"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/schedule"
	"github.com/turtacn/MedRx-Intelligence/internal/domain/user"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MedRx-Intelligence/internal/intelligence/rxextractor"
)

const migrationsPath = "../../migrations"

// platform bundles the wired services and the repositories the tests assert
// against directly.
type platform struct {
	pool *pgxpool.Pool

	medRepo  *repositories.MedicationRepository
	remRepo  *repositories.ReminderRepository
	doseRepo *repositories.DoseLogRepository

	rx        prescription.Service
	adherence adherence.Service
}

// startPostgres launches a PostgreSQL 16 container and applies all
// migrations.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "medrx_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%d/medrx_test?sslmode=disable", host, port.Int())
	require.NoError(t, postgres.RunMigrations(dsn, migrationsPath))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// newPlatform wires the production services over PostgreSQL-backed
// repositories, mirroring the serve command's composition minus the network
// stack.
func newPlatform(t *testing.T) *platform {
	t.Helper()
	pool := startPostgres(t)
	logger := logging.NewNopLogger()

	extractor, err := rxextractor.NewExtractor(
		rxextractor.NewDefaultMedicationLexicon(),
		rxextractor.NewDefaultFrequencyLexicon(),
		rxextractor.DefaultExtractorConfig(),
		nil, nil,
	)
	require.NoError(t, err)

	medRepo := repositories.NewMedicationRepository(pool, logger)
	remRepo := repositories.NewReminderRepository(pool, logger)
	doseRepo := repositories.NewDoseLogRepository(pool, logger)
	userRepo := repositories.NewUserRepository(pool, logger)

	userSvc := user.NewService(userRepo, logger)
	medSvc := medication.NewService(medRepo, logger)
	schedSvc := schedule.NewService(remRepo, logger)

	rxSvc, err := prescription.NewService(extractor, userSvc, medSvc, schedSvc, logger)
	require.NoError(t, err)
	adhSvc, err := adherence.NewService(userSvc, medSvc, schedSvc, remRepo, doseRepo, logger,
		adherence.WithActiveReminderStore(schedule.NewMemoryActiveReminderStore(64)))
	require.NoError(t, err)

	return &platform{
		pool:      pool,
		medRepo:   medRepo,
		remRepo:   remRepo,
		doseRepo:  doseRepo,
		rx:        rxSvc,
		adherence: adhSvc,
	}
}
