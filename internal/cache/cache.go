// Package cache implements the small key-value cache used for the provider
// token and the sync cursor.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/go-redis/redis/v8"
)

// Cache stores small string and JSON values.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetJSON(ctx context.Context, key string, value any) error
	SetJSON(ctx context.Context, key string, value any) error
}

// ErrNotFound is returned by GetJSON when the key has never been set.
var ErrNotFound = errors.New("cache: key not found")

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	conn *redis.Client
}

// NewRedisCache connects to the Redis instance at the given URL.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{conn: client}, nil
}

// Set stores a value in the cache.
func (rc *RedisCache) Set(ctx context.Context, key, value string) error {
	return rc.conn.Set(ctx, key, value, 0).Err()
}

// Get retrieves a value from the cache. A missing key returns "".
func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := rc.conn.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// GetJSON retrieves a JSON string and unmarshals it into value.
func (rc *RedisCache) GetJSON(ctx context.Context, key string, value any) error {
	s, err := rc.Get(ctx, key)
	if err != nil {
		return err
	}
	if s == "" {
		return ErrNotFound
	}

	if err := json.Unmarshal([]byte(s), value); err != nil {
		return fmt.Errorf("unmarshaling cached JSON for %q: %w", key, err)
	}
	return nil
}

// SetJSON stores a struct as a JSON string.
func (rc *RedisCache) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling JSON for cache key %q: %w", key, err)
	}
	return rc.Set(ctx, key, string(data))
}
