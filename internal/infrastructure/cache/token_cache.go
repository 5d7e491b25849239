package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magesync/backend/internal/infrastructure/magento"
)

// tokenStore is the part of the Redis client the token cache uses
type tokenStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTokenCache shares the remote session id between processes, so that
// the server and the CLI do not each open their own session.
type RedisTokenCache struct {
	client tokenStore
	key    string
	ttl    time.Duration
}

// Ensure RedisTokenCache implements magento.TokenCache
var _ magento.TokenCache = (*RedisTokenCache)(nil)

// NewRedisTokenCache creates a token cache stored under key. The ttl should
// stay below the remote session lifetime.
func NewRedisTokenCache(client tokenStore, key string, ttl time.Duration) *RedisTokenCache {
	return &RedisTokenCache{client: client, key: key, ttl: ttl}
}

// Get returns the cached token, or "" when none is cached
func (c *RedisTokenCache) Get(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return token, nil
}

// Set stores the token with the configured ttl
func (c *RedisTokenCache) Set(ctx context.Context, token string) error {
	if err := c.client.Set(ctx, c.key, token, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// Delete evicts the cached token
func (c *RedisTokenCache) Delete(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to evict session token: %w", err)
	}
	return nil
}
