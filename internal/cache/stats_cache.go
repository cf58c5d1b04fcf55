package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zenfocus/internal/infrastructure/logging"
)

// DefaultTTL bounds how long derived stats are served from the cache
const DefaultTTL = 10 * time.Minute

const keyPrefix = "zenfocus:stats:"

// StatsCache stores derived per-user stats under named fields.
// Invalidate drops every field of a user at once.
type StatsCache interface {
	Get(ctx context.Context, userID, field string, dest any) (bool, error)
	Set(ctx context.Context, userID, field string, value any) error
	Invalidate(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

// Options configures the Redis connection
type Options struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ConnectRedis returns nil when no address is configured
func ConnectRedis(opts Options) *redis.Client {
	if opts.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisStatsCache keeps one hash per user holding JSON-encoded values
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

var _ StatsCache = (*RedisStatsCache)(nil)

func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger logging.Logger) *RedisStatsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RedisStatsCache{client: client, ttl: ttl, logger: logger}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

// Get decodes the cached field into dest and reports whether it was present
func (c *RedisStatsCache) Get(ctx context.Context, userID, field string, dest any) (bool, error) {
	raw, err := c.client.HGet(ctx, userKey(userID), field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s/%s: %w", userID, field, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// a corrupt entry is treated as a miss and dropped
		c.logger.Warn("Discarding undecodable cache entry", "user_id", userID, "field", field, "error", err)
		c.client.HDel(ctx, userKey(userID), field)
		return false, nil
	}
	return true, nil
}

// Set stores value and refreshes the user's expiry
func (c *RedisStatsCache) Set(ctx context.Context, userID, field string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s/%s: %w", userID, field, err)
	}

	key := userKey(userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, payload)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s/%s: %w", userID, field, err)
	}
	return nil
}

// Invalidate removes all cached stats for the user
func (c *RedisStatsCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", userID, err)
	}
	c.logger.Debug("Invalidated stats cache", "user_id", userID)
	return nil
}

// InvalidateAll removes cached stats for every user
func (c *RedisStatsCache) InvalidateAll(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate all: %w", err)
	}
	c.logger.Debug("Invalidated stats cache", "keys", len(keys))
	return nil
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, string, string, any) (bool, error) { return false, nil }
func (NopCache) Set(context.Context, string, string, any) error         { return nil }
func (NopCache) Invalidate(context.Context, string) error                { return nil }
func (NopCache) InvalidateAll(context.Context) error                     { return nil }
