package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"zenfocus/internal/infrastructure/logging"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// goose keeps dialect, base FS and logger in package globals.
// Every runner call holds gooseMu while it configures and uses them.
var gooseMu sync.Mutex

// MigrationRunner applies the embedded migrations for one dialect
type MigrationRunner struct {
	db      *sql.DB
	dialect string
	dir     string
	logger  logging.Logger
}

var _ MigrationManager = (*MigrationRunner)(nil)

// NewMigrationRunner creates a runner for the SQLite schema
func NewMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	return newMigrationRunner(db, "sqlite3", "migrations/sqlite", logger)
}

// NewPostgresMigrationRunner creates a runner for the Postgres schema.
// db must be opened with the pgx stdlib driver.
func NewPostgresMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	return newMigrationRunner(db, "postgres", "migrations/postgres", logger)
}

func newMigrationRunner(db *sql.DB, dialect, dir string, logger logging.Logger) *MigrationRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MigrationRunner{db: db, dialect: dialect, dir: dir, logger: logger}
}

func (mr *MigrationRunner) withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(mr.dialect); err != nil {
		return fmt.Errorf("goose configuration failed: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(logging.NewGooseLoggerAdapter(mr.logger))
	return fn()
}

// RunMigrations applies all pending migrations
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	if mr.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return mr.withGoose(func() error {
		mr.logger.Info("Running database migrations", "dialect", mr.dialect)
		if err := goose.UpContext(ctx, mr.db, mr.dir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if version, err := goose.GetDBVersionContext(ctx, mr.db); err == nil {
			mr.logger.Info("Database migrated to version", "version", version)
		}
		return nil
	})
}

// GetCurrentVersion returns the applied schema version
func (mr *MigrationRunner) GetCurrentVersion(ctx context.Context) (int64, error) {
	if mr.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var version int64
	err := mr.withGoose(func() error {
		v, err := goose.GetDBVersionContext(ctx, mr.db)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// ValidateMigrations checks that the embedded migrations parse
func (mr *MigrationRunner) ValidateMigrations() error {
	return mr.withGoose(func() error {
		migrations, err := goose.CollectMigrations(mr.dir, 0, goose.MaxVersion)
		if err != nil {
			return fmt.Errorf("failed to collect migrations: %w", err)
		}
		if len(migrations) == 0 {
			return fmt.Errorf("no migrations found in %s", mr.dir)
		}
		mr.logger.Debug("Found valid migrations", "dialect", mr.dialect, "count", len(migrations))
		return nil
	})
}
