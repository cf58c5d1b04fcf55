package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	dberrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/infrastructure/logging"
)

var (
	newPoolFn = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, cfg)
	}
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// ConnectPostgres opens a pgx pool sized from config and verifies it with a ping
func ConnectPostgres(ctx context.Context, config *Config, logger logging.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if config.PostgresURL == "" {
		return nil, dberrors.HandleValidationError("ConnectPostgres", "postgresUrl", "", "postgres url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.PostgresURL)
	if err != nil {
		return nil, dberrors.HandleValidationError("ConnectPostgres", "postgresUrl", "<redacted>", err.Error())
	}
	if config.MaxConnections > 0 {
		poolConfig.MaxConns = int32(config.MaxConnections)
	}
	if config.MaxIdleConns > 0 && config.MaxIdleConns <= config.MaxConnections {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := newPoolFn(ctx, poolConfig)
	if err != nil {
		return nil, dberrors.WrapDatabaseError("ConnectPostgres", err)
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, dberrors.NewRepositoryError("ConnectPostgres", err, dberrors.ErrCodeConnection)
	}

	logger.Info("Connected to Postgres", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return pool, nil
}

// MigratePostgres applies the Postgres schema through the pgx stdlib driver
func MigratePostgres(ctx context.Context, config *Config, logger logging.Logger) error {
	db, err := sql.Open("pgx", config.PostgresURL)
	if err != nil {
		return dberrors.HandleConnectionError("MigratePostgres", fmt.Sprintf("failed to open database: %v", err))
	}
	defer db.Close()

	runner := NewPostgresMigrationRunner(db, logger)
	if err := runner.ValidateMigrations(); err != nil {
		return dberrors.WrapDatabaseErrorWithContext("MigratePostgres", err, map[string]string{"phase": "validation"})
	}
	if err := runner.RunMigrations(ctx); err != nil {
		return dberrors.WrapDatabaseErrorWithContext("MigratePostgres", err, map[string]string{"phase": "execution"})
	}
	return nil
}
