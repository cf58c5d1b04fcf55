package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"zenfocus/internal/cache"
	"zenfocus/internal/database"
	"zenfocus/internal/export"
	repoerrors "zenfocus/internal/infrastructure/errors"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/platform"
	"zenfocus/internal/repository"
	"zenfocus/internal/services"
	"zenfocus/internal/signal"
	"zenfocus/internal/stats"
	"zenfocus/internal/types"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App wires the session store, stats cache and services from one Config
type App struct {
	config   *Config
	logger   logging.Logger
	clock    platform.Clock
	location *time.Location

	dbService *database.SQLiteService
	pgPool    *pgxpool.Pool
	redis     *redis.Client

	repo     repository.SessionRepository
	stats    *services.StatsService
	sessions *services.SessionManager
}

// NewApp validates cfg. Nothing is opened until Startup.
func NewApp(cfg *Config, logger logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	}
	loc, err := platform.LoadLocation(cfg.Location)
	if err != nil {
		return nil, err
	}
	return &App{
		config:   cfg,
		logger:   logger,
		clock:    platform.SystemClock{},
		location: loc,
	}, nil
}

// SetClock replaces the wall clock, for tests and replays anchored in the past.
// It must be called before Startup.
func (a *App) SetClock(clock platform.Clock) {
	if clock != nil {
		a.clock = clock
	}
}

// Startup opens the configured store, applies migrations when enabled and
// builds the services. A failed cache connection degrades to no caching.
func (a *App) Startup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	repoerrors.SetRetryLogger(repoerrors.NewLoggerBridge(a.logger))

	repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.repo = repo

	statsCache := a.openCache(ctx)
	mode, _ := stats.ParseBucketScoreMode(a.config.BucketScoreMode)
	a.stats, err = services.NewStatsService(repo, services.StatsOptions{
		Cache:        statsCache,
		Aggregator:   stats.NewAggregator(stats.WithLocation(a.location), stats.WithBucketScoreMode(mode)),
		Clock:        a.clock,
		LookbackDays: a.config.LookbackDays,
		Logger:       a.logger,
	})
	if err != nil {
		a.closeStore()
		return err
	}

	detectionCfg := a.config.Detection
	a.sessions = services.NewSessionManager(services.ManagerConfig{
		Detection:  &detectionCfg,
		Repository: repo,
		Clock:      a.clock,
		Logger:     a.logger,
		OnEnd:      a.invalidateStats,
	})

	a.logger.Info("Application started",
		"environment", a.config.Environment,
		"driver", a.config.Database.Driver,
		"cache", a.redis != nil)
	return nil
}

func (a *App) openStore(ctx context.Context) (repository.SessionRepository, error) {
	dbCfg := a.config.Database.Clone()

	if dbCfg.IsPostgres() {
		if dbCfg.AutoMigrate {
			if err := database.MigratePostgres(ctx, dbCfg, a.logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.ConnectPostgres(ctx, dbCfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.pgPool = pool
		return repository.NewPostgresRepository(pool, a.logger), nil
	}

	svc := database.NewSQLiteService(a.logger)
	if err := svc.Connect(ctx, dbCfg); err != nil {
		return nil, err
	}
	if dbCfg.AutoMigrate {
		if err := svc.Migrate(ctx); err != nil {
			svc.Close()
			return nil, err
		}
	}
	if err := svc.Health(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	a.dbService = svc
	return repository.NewSQLiteRepository(svc, a.logger), nil
}

func (a *App) openCache(ctx context.Context) cache.StatsCache {
	client := cache.ConnectRedis(a.config.Cache)
	if client == nil {
		return cache.NopCache{}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Stats cache unavailable, continuing without it", "addr", a.config.Cache.Addr, "error", err)
		client.Close()
		return cache.NopCache{}
	}
	a.redis = client
	return cache.NewRedisStatsCache(client, a.config.Cache.TTL, a.logger)
}

func (a *App) invalidateStats(ctx context.Context, session *types.Session) {
	if err := a.stats.Invalidate(ctx, session.UserID); err != nil {
		a.logger.Warn("Stats cache invalidation failed", "user_id", session.UserID, "error", err)
	}
}

// Shutdown stops the session manager and closes the cache and store
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if a.sessions != nil {
		for _, id := range a.sessions.Active() {
			if _, err := a.sessions.End(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("end session %s: %w", id, err))
			}
		}
		a.sessions.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		a.redis = nil
	}
	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Application stopped")
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if a.pgPool != nil {
		a.pgPool.Close()
		a.pgPool = nil
	}
	if a.dbService != nil {
		err := a.dbService.Close()
		a.dbService = nil
		if err != nil {
			return repoerrors.NewRepositoryError("shutdown", err, repoerrors.ClassifyError(err))
		}
	}
	return nil
}

func (a *App) Config() *Config                          { return a.config }
func (a *App) Logger() logging.Logger                   { return a.logger }
func (a *App) Sessions() *services.SessionManager       { return a.sessions }
func (a *App) Stats() *services.StatsService            { return a.stats }
func (a *App) Repository() repository.SessionRepository { return a.repo }

// MigrationVersion reports the applied schema version of the SQLite store
func (a *App) MigrationVersion(ctx context.Context) (int64, error) {
	if a.dbService == nil {
		return 0, errors.New("migration version is only tracked for the sqlite store")
	}
	return a.dbService.GetMigrationVersion(ctx)
}

// Replay runs a decoded script as one session on a clock that follows the
// script, then ends, scores and saves it.
func (a *App) Replay(ctx context.Context, script *signal.Script) (*types.Session, *signal.Summary, error) {
	if a.repo == nil {
		return nil, nil, errors.New("app not started")
	}
	userID := script.UserID
	if userID == "" {
		userID = a.config.UserID
	}

	detectionCfg := a.config.Detection
	clock := signal.NewScriptClock(script.Start)
	tracker, err := services.NewFocusTracker(userID, services.TrackerOptions{
		Detection:  &detectionCfg,
		Repository: a.repo,
		Clock:      clock,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	summary, err := signal.Replay(ctx, script, tracker, clock)
	if err != nil {
		tracker.Abort()
		return nil, summary, err
	}
	session, err := tracker.End(ctx)
	if err == nil {
		a.invalidateStats(ctx, session)
	}
	return session, summary, err
}

// Export writes the user's sessions from the last days days
func (a *App) Export(ctx context.Context, w io.Writer, userID string, days int, format export.Format) error {
	if a.repo == nil {
		return errors.New("app not started")
	}
	if days <= 0 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	now := a.clock.Now().In(a.location)
	r := types.DateRange{From: now.AddDate(0, 0, -(days - 1)), To: now}
	sessions, err := a.repo.Query(ctx, userID, r)
	if err != nil {
		return err
	}
	return export.Write(w, export.Document{
		UserID:     userID,
		ExportedAt: now,
		Range:      r,
		Sessions:   sessions,
	}, format)
}

// Cleanup deletes sessions older than the retention window. It is a no-op
// when retention is disabled. A SQLite store is optimized after rows are removed.
func (a *App) Cleanup(ctx context.Context) (int64, error) {
	if a.stats == nil {
		return 0, errors.New("app not started")
	}
	cutoff, ok := a.config.Database.RetentionCutoff(a.clock.Now())
	if !ok {
		a.logger.Info("Retention cleanup disabled")
		return 0, nil
	}
	deleted, err := a.stats.Cleanup(ctx, cutoff)
	if err != nil || deleted == 0 || a.dbService == nil {
		return deleted, err
	}
	if err := a.dbService.Optimize(ctx); err != nil {
		a.logger.Warn("Store optimization after cleanup failed", "error", err)
	}
	return deleted, nil
}

// HealthReport describes the state of the session store
type HealthReport struct {
	Driver          string `json:"driver"`
	SchemaVersion   int64  `json:"schemaVersion,omitempty"`
	OpenConnections int    `json:"openConnections"`
	InUse           int    `json:"inUse"`
	Idle            int    `json:"idle"`
}

// Health checks the store and reports its connection pool
func (a *App) Health(ctx context.Context) (*HealthReport, error) {
	switch {
	case a.pgPool != nil:
		if err := a.pgPool.Ping(ctx); err != nil {
			return nil, repoerrors.NewRepositoryError("Health", err, repoerrors.ErrCodeConnection)
		}
		stat := a.pgPool.Stat()
		return &HealthReport{
			Driver:          database.DriverPostgres,
			OpenConnections: int(stat.TotalConns()),
			InUse:           int(stat.AcquiredConns()),
			Idle:            int(stat.IdleConns()),
		}, nil
	case a.dbService != nil:
		if err := a.dbService.Health(ctx); err != nil {
			return nil, err
		}
		version, err := a.dbService.GetMigrationVersion(ctx)
		if err != nil {
			return nil, err
		}
		stats := a.dbService.GetStats()
		return &HealthReport{
			Driver:          database.DriverSQLite,
			SchemaVersion:   version,
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
		}, nil
	}
	return nil, errors.New("app not started")
}
