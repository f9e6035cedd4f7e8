package postgres

import (
	stderrors "errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver

	"github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// sourceURL normalizes a migrations path into a golang-migrate source URL.
// A bare directory path gets the file:// scheme; paths that already carry a
// scheme pass through unchanged.
func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// ─────────────────────────────────────────────────────────────────────────────
// RunMigrations — apply all pending migrations
// ─────────────────────────────────────────────────────────────────────────────

// RunMigrations applies every pending migration from migrationsPath to the
// database at dbURL.  A database that is already current is not an error.
func RunMigrations(dbURL, migrationsPath string) error {
	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RollbackMigration — roll back by a number of steps
// ─────────────────────────────────────────────────────────────────────────────

// RollbackMigration rolls the schema back by the given number of migration
// steps.  Intended for development and recovery, not routine operation.
func RollbackMigration(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return errors.New(errors.ErrCodeBadRequest, "rollback steps must be greater than zero")
	}

	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeDatabaseError, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MigrationStatus — query current migration state
// ─────────────────────────────────────────────────────────────────────────────

// MigrationStatus reports the applied migration version and whether the
// schema is dirty.  A dirty schema means a previous migration failed partway
// and needs manual repair before anything else will run.
func MigrationStatus(dbURL, migrationsPath string) (version uint, dirty bool, err error) {
	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			// Fresh database, nothing applied yet.
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}

	return version, dirty, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ResetDatabase — drop everything and re-apply
// ─────────────────────────────────────────────────────────────────────────────

// ResetDatabase rolls back all migrations and re-applies them from scratch.
// Destructive; development and test environments only.
func ResetDatabase(dbURL, migrationsPath string) error {
	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Down(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back all migrations")
	}

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to re-apply migrations")
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ForceMigrationVersion — manually set migration version
// ─────────────────────────────────────────────────────────────────────────────

// ForceMigrationVersion overwrites the recorded schema version without
// running any migrations.  This is the escape hatch for a dirty schema after
// the failed migration has been repaired by hand.
func ForceMigrationVersion(dbURL, migrationsPath string, version int) error {
	m, err := migrate.New(sourceURL(migrationsPath), dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version")
	}

	return nil
}
