package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/hurley87/irl-protocol/internal/logger"
)

// schemaVersion is the last migration that only touches schema.
// Everything after it is demo seed data.
const schemaVersion = 1

// Options configures a migration run.
type Options struct {
	// Dir is the directory holding the .sql migration files.
	Dir string
	// Seed runs the demo-data migrations after the schema ones.
	Seed bool
}

// DefaultOptions points at the repo-level migrations directory and
// skips seed data.
func DefaultOptions() Options {
	return Options{Dir: "./migrations", Seed: false}
}

// Runner applies versioned SQL migrations against Postgres.
type Runner struct {
	db       *sql.DB
	opts     Options
	log      *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, opts Options, log *logger.Logger) *Runner {
	return &Runner{db: db, opts: opts, log: log}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.opts.Dir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.opts.Dir)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", r.opts.Dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = migrator
	return nil
}

// Run brings the schema up to date. With Seed set it applies every
// migration; without it, only up to the schema version.
func (r *Runner) Run() error {
	if err := r.init(); err != nil {
		return err
	}

	if err := r.repairDirty(); err != nil {
		return err
	}

	if r.opts.Seed {
		r.log.Info("MIGRATE", "Applying all migrations including seed data")
		if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		r.log.Info("MIGRATE", "Applying schema migrations")
		if err := r.migrator.Migrate(schemaVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run schema migrations: %w", err)
		}
	}

	version, _, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	r.log.Info("MIGRATE", fmt.Sprintf("Schema at version %d", version))
	return nil
}

// Down rolls every migration back.
func (r *Runner) Down() error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// To migrates up or down to an exact version.
func (r *Runner) To(version uint) error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// repairDirty clears a dirty flag left by an interrupted run so the
// next attempt can proceed.
func (r *Runner) repairDirty() error {
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		r.log.Warn("MIGRATE", fmt.Sprintf("Repairing dirty migration at version %d", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to repair dirty migration: %w", err)
		}
	}
	return nil
}

// Close releases the migrator's hold on the database connection.
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, dbErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("error closing migration database: %w", dbErr)
	}
	return nil
}
