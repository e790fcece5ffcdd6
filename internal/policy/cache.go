package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/redaction"
)

// CacheConfig contains Redis cache configuration for the policy hot path.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// CachedStore is a read-through Redis cache in front of another Store.
// Cache failures degrade to the underlying store; they never fail a lookup.
// Not-found results are not cached, so a newly activated policy is visible
// immediately.
type CachedStore struct {
	inner  Store
	client *redis.Client
	config *CacheConfig
	logger *zap.Logger
	stats  cacheStats
}

type cacheStats struct {
	hits   int64
	misses int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewCachedStore wraps inner with a Redis policy cache.
func NewCachedStore(inner Store, config *CacheConfig, logger *zap.Logger) (*CachedStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Policy cache initialized",
		zap.String("key_prefix", config.KeyPrefix),
		zap.Duration("default_ttl", config.DefaultTTL))

	return &CachedStore{
		inner:  inner,
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// GetActive returns the cached policy when present, refilling from the inner
// store on a miss.
func (c *CachedStore) GetActive(ctx context.Context, id string) (*redaction.Policy, error) {
	key := c.cacheKey(id)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var policy redaction.Policy
		if err := json.Unmarshal([]byte(cached), &policy); err != nil {
			// Corrupted entry: drop it and fall through to the store.
			c.logger.Warn("Dropping corrupted policy cache entry",
				zap.String("key", key), zap.Error(err))
			c.client.Del(ctx, key)
		} else if policy.Status == redaction.PolicyActive {
			c.stats.hits++
			c.logger.Debug("Policy cache hit", zap.String("policy_id", id))
			return &policy, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Policy cache lookup failed", zap.Error(err))
	}

	c.stats.misses++
	policy, err := c.inner.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(policy)
	if err == nil {
		if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
			c.logger.Warn("Failed to cache policy", zap.String("policy_id", id), zap.Error(err))
		}
	}

	return policy, nil
}

// Invalidate evicts a policy from the cache.
func (c *CachedStore) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.cacheKey(id)).Err()
}

// Stats returns cache hit/miss counters.
func (c *CachedStore) Stats() CacheStats {
	stats := CacheStats{Hits: c.stats.hits, Misses: c.stats.misses}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis client and the inner store.
func (c *CachedStore) Close() error {
	if err := c.client.Close(); err != nil {
		c.inner.Close()
		return err
	}
	return c.inner.Close()
}

func (c *CachedStore) cacheKey(id string) string {
	return fmt.Sprintf("%s:policy:%s", c.config.KeyPrefix, id)
}
