// Package cache stores computed reports in Redis. A nil *ReportCache is a
// valid, disabled cache: reads always miss and writes are dropped.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/target-analytics/internal/config"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const keyPrefix = "target-analytics:report"

// NewRedisClient connects to Redis and verifies the connection.
// Returns nil without error when the cache is disabled.
func NewRedisClient(ctx context.Context, cfg *config.CacheConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Report cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}

// ReportCache caches JSON encoded reports grouped by period
type ReportCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache wraps a Redis client. Returns nil when client is nil.
func NewReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if client == nil {
		return nil
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

// Key builds a cache key for a report of the given kind. The period is kept in
// clear text so InvalidatePeriod can match it; the request is hashed.
func Key(kind, period string, request any) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, period, kind, hex.EncodeToString(sum[:12])), nil
}

func periodPattern(period string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, period)
}

// Get decodes the cached value into dest and reports whether it was found
func (c *ReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached report: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return true, nil
}

// Set stores value under key for the configured TTL
func (c *ReportCache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// InvalidatePeriod removes every cached report of a period
func (c *ReportCache) InvalidatePeriod(ctx context.Context, period string) error {
	if c == nil {
		return nil
	}

	var keys []string
	iter := c.client.Scan(ctx, 0, periodPattern(period), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached reports: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached reports: %w", err)
	}
	c.logger.Debug("Invalidated cached reports", zap.String("period", period), zap.Int("keys", len(keys)))
	return nil
}
