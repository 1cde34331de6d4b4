// Package cache provides Redis-backed caching of detection results so
// repeated scans of identical text skip the detector entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/config"
	"github.com/raaihank/moji-sentinel/internal/logger"
	"github.com/raaihank/moji-sentinel/internal/mojibake"
)

// ResultCache handles Redis-based caching of detection results keyed by
// the SHA-256 of the scanned text.
type ResultCache struct {
	client *redis.Client
	cfg    config.CacheConfig
	logger *logger.Logger

	hits   int64
	misses int64
}

// New creates a Redis-backed result cache and verifies the connection.
func New(cfg config.CacheConfig, log *logger.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}

	rc := &ResultCache{
		client: redis.NewClient(opts),
		cfg:    cfg,
		logger: log.WithComponent("cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rc.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	rc.logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("ttl", cfg.TTL))

	return rc, nil
}

// Ping tests the Redis connection.
func (rc *ResultCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get returns the cached result for text, or (nil, false) on a miss.
// Redis errors are logged and treated as misses so detection always
// proceeds when the cache is unavailable.
func (rc *ResultCache) Get(ctx context.Context, text string) (*mojibake.DetectionResult, bool) {
	key := rc.key(text)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&rc.misses, 1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var entry cachedEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil || entry.Result == nil {
		rc.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		// Drop the corrupted entry so the next scan repopulates it.
		rc.client.Del(ctx, key)
		return nil, false
	}

	atomic.AddInt64(&rc.hits, 1)
	rc.logger.Debug("Cache hit",
		zap.String("key", key),
		zap.Time("cached_at", entry.CachedAt))

	return entry.Result, true
}

// Set caches a detection result under the text's hash with the configured TTL.
func (rc *ResultCache) Set(ctx context.Context, text string, result *mojibake.DetectionResult) error {
	key := rc.key(text)

	data, err := json.Marshal(cachedEntry{
		Result:   result,
		CachedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling result for caching: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.cfg.TTL).Err(); err != nil {
		rc.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("caching result: %w", err)
	}

	rc.logger.Debug("Result cached", zap.String("key", key))
	return nil
}

// Clear removes all cached results under the configured key prefix.
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := rc.cfg.KeyPrefix + "*"

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("deleting cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// GetStats returns cache performance statistics.
func (rc *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   atomic.LoadInt64(&rc.hits),
		Misses: atomic.LoadInt64(&rc.misses),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	info, err := rc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("getting Redis info: %w", err)
	}
	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := rc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Close closes the Redis connection.
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// key derives the cache key for a text from its SHA-256 digest.
func (rc *ResultCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return rc.cfg.KeyPrefix + hex.EncodeToString(sum[:])
}

// maskRedisURL hides credentials in a Redis URL for logging.
func maskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "redis://***"
	}
	return u.Redacted()
}
