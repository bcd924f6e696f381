// Package cache wraps Redis for the hot read paths: the latest aggregate
// state and node list served to dashboards, and the API rate limiter.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"twinguard-lab/internal/config"
	"twinguard-lab/internal/domain/models"
	"twinguard-lab/pkg/logger"
)

// RedisCache wraps the Redis client with typed operations
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *logger.Logger
}

// NewRedis creates a new Redis client and verifies the connection
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return &RedisCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    log,
	}, nil
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

// key prepends the namespace prefix to a key
func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.key(key)).Result()
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set stores a value in cache with optional TTL
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// SetJSON marshals and stores a value in cache
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

// Delete removes keys from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixedKeys...).Err()
}

// Pipeline returns a Redis pipeline for batch operations
func (c *RedisCache) Pipeline() redis.Pipeliner {
	return c.client.Pipeline()
}

// Cache keys
const (
	KeySystemState = "cache:system_state"
	KeyNodeList    = "cache:nodes"

	KeyRateLimitPrefix = "rate_limit:"
)

// CacheSystemState stores the latest aggregate state for dashboard reads
func (c *RedisCache) CacheSystemState(ctx context.Context, state *models.SystemState, ttl time.Duration) error {
	return c.SetJSON(ctx, KeySystemState, state, ttl)
}

// GetCachedSystemState retrieves the cached aggregate state. Returns
// (nil, nil) on a cache miss.
func (c *RedisCache) GetCachedSystemState(ctx context.Context) (*models.SystemState, error) {
	var state models.SystemState
	err := c.GetJSON(ctx, KeySystemState, &state)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// CacheNodes stores the node list for dashboard reads
func (c *RedisCache) CacheNodes(ctx context.Context, nodes []*models.DigitalTwinNode, ttl time.Duration) error {
	return c.SetJSON(ctx, KeyNodeList, nodes, ttl)
}

// GetCachedNodes retrieves the cached node list. Returns (nil, nil) on a
// cache miss.
func (c *RedisCache) GetCachedNodes(ctx context.Context) ([]*models.DigitalTwinNode, error) {
	var nodes []*models.DigitalTwinNode
	err := c.GetJSON(ctx, KeyNodeList, &nodes)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// InvalidateTwin drops the cached twin views after a mutation
func (c *RedisCache) InvalidateTwin(ctx context.Context) error {
	return c.Delete(ctx, KeySystemState, KeyNodeList)
}

// CheckRateLimit checks and increments a fixed-window rate limit counter.
// Returns (allowed, remaining, resetTime, error).
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := time.Now()
	windowKey := fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, now.Unix()/int64(window.Seconds()))

	pipe := c.Pipeline()
	incr := pipe.Incr(ctx, c.key(windowKey))
	pipe.Expire(ctx, c.key(windowKey), window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, now.Add(window), nil
}
