// Package cache provides a Redis-backed read cache for analysis status
// lookups. The database stays authoritative; the cache only absorbs the
// polling the API gets while a job runs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"trade-coach/internal/store"
)

type Config struct {
	Address  string
	Password string
	DB       int
	// TTL bounds staleness if an invalidation is lost.
	TTL time.Duration
}

// StatusCache caches analysis records keyed by owner and job id.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(config *Config) (*StatusCache, error) {
	if config == nil || config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StatusCache{rdb: rdb, ttl: ttl}, nil
}

func (c *StatusCache) key(userID, jobID string) string {
	return fmt.Sprintf("analysis:%s:%s", userID, jobID)
}

// Get returns the cached record, or (nil, nil) on a miss. Cache errors are
// returned so callers can log them, but a miss is not an error.
func (c *StatusCache) Get(ctx context.Context, userID, jobID string) (*store.AnalysisRecord, error) {
	data, err := c.rdb.Get(ctx, c.key(userID, jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status cache: %w", err)
	}

	rec := &store.AnalysisRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}
	return rec, nil
}

// Set stores the record with the configured TTL.
func (c *StatusCache) Set(ctx context.Context, rec *store.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode analysis for cache: %w", err)
	}
	return c.rdb.Set(ctx, c.key(rec.UserID, rec.JobID), data, c.ttl).Err()
}

// Invalidate drops the cached record after a status transition.
func (c *StatusCache) Invalidate(ctx context.Context, userID, jobID string) error {
	return c.rdb.Del(ctx, c.key(userID, jobID)).Err()
}

func (c *StatusCache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *StatusCache) Close() error {
	return c.rdb.Close()
}
