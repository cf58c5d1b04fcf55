package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zenfocus/internal/cache"
	"zenfocus/internal/infrastructure/logging"
	"zenfocus/internal/platform"
	"zenfocus/internal/repository"
	"zenfocus/internal/stats"
	"zenfocus/internal/types"
)

// DefaultLookbackDays bounds the history read for all-time stats
const DefaultLookbackDays = 365

// StatsService answers stats queries from stored sessions, caching derived
// results per user and calendar day.
type StatsService struct {
	repo         repository.SessionRepository
	cache        cache.StatsCache
	aggregator   *stats.Aggregator
	clock        platform.Clock
	lookbackDays int
	logger       logging.Logger
}

// StatsOptions configures a StatsService. Zero values select defaults.
type StatsOptions struct {
	Cache        cache.StatsCache
	Aggregator   *stats.Aggregator
	Clock        platform.Clock
	LookbackDays int
	Logger       logging.Logger
}

func NewStatsService(repo repository.SessionRepository, opts StatsOptions) (*StatsService, error) {
	if repo == nil {
		return nil, errors.New("repository cannot be nil")
	}
	if opts.Cache == nil {
		opts.Cache = cache.NopCache{}
	}
	if opts.Aggregator == nil {
		opts.Aggregator = stats.NewAggregator()
	}
	if opts.Clock == nil {
		opts.Clock = platform.SystemClock{}
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	return &StatsService{
		repo:         repo,
		cache:        opts.Cache,
		aggregator:   opts.Aggregator,
		clock:        opts.Clock,
		lookbackDays: opts.LookbackDays,
		logger:       opts.Logger,
	}, nil
}

// now is read once per call so every figure in a result shares the same "today"
func (s *StatsService) now() time.Time {
	return s.clock.Now().In(s.aggregator.Location())
}

func (s *StatsService) history(ctx context.Context, userID string, r types.DateRange) ([]types.Session, error) {
	if userID == "" {
		return nil, errors.New("user id cannot be empty")
	}
	sessions, err := s.repo.Query(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("query sessions for %s: %w", userID, err)
	}
	return sessions, nil
}

func (s *StatsService) lookback(now time.Time) types.DateRange {
	return types.DateRange{From: now.AddDate(0, 0, -s.lookbackDays), To: now}
}

// cached serves field from the cache or computes and stores it. Cache failures
// are logged and never fail the call.
func cached[T any](ctx context.Context, s *StatsService, userID, field string, compute func() (T, error)) (T, error) {
	var value T
	hit, err := s.cache.Get(ctx, userID, field, &value)
	if err != nil {
		s.logger.Warn("Stats cache read failed", "user_id", userID, "field", field, "error", err)
	}
	if hit {
		return value, nil
	}

	value, err = compute()
	if err != nil {
		return value, err
	}
	if err := s.cache.Set(ctx, userID, field, value); err != nil {
		s.logger.Warn("Stats cache write failed", "user_id", userID, "field", field, "error", err)
	}
	return value, nil
}

func dayField(name string, now time.Time) string {
	return name + ":" + now.Format("2006-01-02")
}

// UserStats returns totals, today's focus time and streaks over the lookback window
func (s *StatsService) UserStats(ctx context.Context, userID string) (types.UserStats, error) {
	now := s.now()
	return cached(ctx, s, userID, dayField("user_stats", now), func() (types.UserStats, error) {
		sessions, err := s.history(ctx, userID, s.lookback(now))
		if err != nil {
			return types.UserStats{}, err
		}
		return s.aggregator.UserStats(sessions, now), nil
	})
}

// DailyBreakdown returns one bucket per day for the last days days, today included
func (s *StatsService) DailyBreakdown(ctx context.Context, userID string, days int) ([]types.DailyAggregate, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	now := s.now()
	field := dayField(fmt.Sprintf("daily:%d", days), now)
	return cached(ctx, s, userID, field, func() ([]types.DailyAggregate, error) {
		r := types.DateRange{From: now.AddDate(0, 0, -(days - 1)), To: now}
		sessions, err := s.history(ctx, userID, r)
		if err != nil {
			return nil, err
		}
		return s.aggregator.DailyBuckets(sessions, r), nil
	})
}

// WeeklySummary covers the seven calendar days ending today
func (s *StatsService) WeeklySummary(ctx context.Context, userID string) (types.WeeklySummary, error) {
	now := s.now()
	return cached(ctx, s, userID, dayField("weekly", now), func() (types.WeeklySummary, error) {
		sessions, err := s.history(ctx, userID, types.DateRange{From: now.AddDate(0, 0, -6), To: now})
		if err != nil {
			return types.WeeklySummary{}, err
		}
		return s.aggregator.WeeklySummary(sessions, now), nil
	})
}

// RecentSessions returns the n most recent completed sessions
func (s *StatsService) RecentSessions(ctx context.Context, userID string, n int) ([]types.RecentSession, error) {
	if n <= 0 {
		return []types.RecentSession{}, nil
	}
	now := s.now()
	field := dayField(fmt.Sprintf("recent:%d", n), now)
	return cached(ctx, s, userID, field, func() ([]types.RecentSession, error) {
		sessions, err := s.history(ctx, userID, s.lookback(now))
		if err != nil {
			return nil, err
		}
		return s.aggregator.RecentSessions(sessions, now, n), nil
	})
}

// Invalidate drops cached stats for a user, typically after a session is saved
func (s *StatsService) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

// Cleanup deletes sessions that started before cutoff and clears every cached result
func (s *StatsService) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete sessions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("Stats cache flush failed after cleanup", "error", err)
		}
	}
	s.logger.Info("Retention cleanup finished", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	return deleted, nil
}
