package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/database/postgres"
)

// newMigrateCmd builds the schema migration command group.  All subcommands
// run against the configured database; --path overrides the migrations
// directory for local development checkouts.
func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: "Apply, roll back, and inspect schema migrations against the configured\n" +
			"PostgreSQL database.",
	}

	cmd.PersistentFlags().StringVar(&dir, "path", "", "migrations directory (defaults to the configured path)")

	cmd.AddCommand(
		newMigrateUpCmd(&dir),
		newMigrateDownCmd(&dir),
		newMigrateStatusCmd(&dir),
		newMigrateResetCmd(&dir),
	)
	return cmd
}

// migrationTarget resolves the database URL and migrations directory for a
// migrate subcommand.
func migrationTarget(cmd *cobra.Command, dir *string) (dsn, path string, err error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return "", "", err
	}
	cfg, err := requireConfig(cliCtx)
	if err != nil {
		return "", "", err
	}
	path = cfg.Database.MigrationPath
	if dir != nil && *dir != "" {
		path = *dir
	}
	return postgresConfig(cfg.Database).DSN(), path, nil
}

func newMigrateUpCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, path, err := migrationTarget(cmd, dir)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dsn, path); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			PrintSuccess(cmd, "database schema is up to date")
			return nil
		},
	}
}

func newMigrateDownCmd(dir *string) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, path, err := migrationTarget(cmd, dir)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dsn, path, steps); err != nil {
				return fmt.Errorf("roll back migrations: %w", err)
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, path, err := migrationTarget(cmd, dir)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(dsn, path)
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			return PrintResult(cmd, migrationStatus{
				Version: version,
				Dirty:   dirty,
				Fresh:   version == 0 && !dirty,
			})
		},
	}
}

func newMigrateResetCmd(dir *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Roll back everything and re-apply from scratch (destructive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset the database without --yes")
			}
			dsn, path, err := migrationTarget(cmd, dir)
			if err != nil {
				return err
			}
			if err := postgres.ResetDatabase(dsn, path); err != nil {
				return fmt.Errorf("reset database: %w", err)
			}
			PrintSuccess(cmd, "database reset and re-migrated")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive reset")
	return cmd
}

// migrationStatus is the printable result of `medrx migrate status`.
type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	Fresh   bool `json:"fresh"`
}

func (s migrationStatus) String() string {
	switch {
	case s.Fresh:
		return "no migrations applied"
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty: manual repair required)", s.Version)
	default:
		return fmt.Sprintf("version %d (clean)", s.Version)
	}
}

func (s migrationStatus) TableHeaders() []string {
	return []string{"VERSION", "DIRTY", "STATE"}
}

func (s migrationStatus) TableRows() [][]string {
	state := "clean"
	if s.Dirty {
		state = "dirty"
	}
	if s.Fresh {
		state = "fresh"
	}
	return [][]string{{fmt.Sprintf("%d", s.Version), fmt.Sprintf("%t", s.Dirty), state}}
}
