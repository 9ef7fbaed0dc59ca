package keyring

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a cached key survives without a read.
const DefaultCacheTTL = 24 * time.Hour

// Cache is a best-effort copy of stored room keys. Implementations must
// never replace an existing entry, so a cached key always equals the
// stored winner.
type Cache interface {
	Get(ctx context.Context, conversationID string) (string, bool)
	Add(ctx context.Context, conversationID, key string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (string, bool) {
	return "", false
}

func (nopCache) Add(context.Context, string, string) error {
	return nil
}

// RedisCache stores room keys in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// roomKeyKey returns the Redis key holding a room's key.
func roomKeyKey(conversationID string) string {
	return fmt.Sprintf("room:%s:key", conversationID)
}

// Get returns the cached key. Redis errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, conversationID string) (string, bool) {
	key, err := c.client.GetEx(ctx, roomKeyKey(conversationID), c.ttl).Result()
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Add stores key only if the room has no cached key yet.
func (c *RedisCache) Add(ctx context.Context, conversationID, key string) error {
	return c.client.SetNX(ctx, roomKeyKey(conversationID), key, c.ttl).Err()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
