// Package core provides the shared contracts for the IRIS aggregation
// library. This file implements the Memory interface backed by Redis, used
// for cross-process caching of source payloads and degraded responses.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisMemory implements Memory on top of go-redis with key namespacing.
type RedisMemory struct {
	client    *redis.Client
	namespace string
	logger    Logger
}

// RedisMemoryOptions configures the Redis-backed memory
type RedisMemoryOptions struct {
	RedisURL  string
	Namespace string // Key namespace, defaults to "iris"
	Logger    Logger
}

// NewRedisMemory creates a Redis-backed Memory and verifies connectivity.
func NewRedisMemory(ctx context.Context, opts RedisMemoryOptions) (*RedisMemory, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis memory: %w: redis url", ErrMissingConfiguration)
	}
	if opts.Namespace == "" {
		opts.Namespace = "iris"
	}
	if opts.Logger == nil {
		opts.Logger = &NoOpLogger{}
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis memory: invalid url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis memory: ping: %w", err)
	}

	opts.Logger.Info("Redis memory initialized", map[string]interface{}{
		"operation": "redis_memory_init",
		"namespace": opts.Namespace,
		"db":        redisOpts.DB,
	})

	return &RedisMemory{
		client:    client,
		namespace: opts.Namespace,
		logger:    opts.Logger,
	}, nil
}

func (r *RedisMemory) key(key string) string {
	return r.namespace + ":" + key
}

// Get retrieves a value. Missing keys return "" with no error.
func (r *RedisMemory) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis memory get %q: %w", key, err)
	}
	return value, nil
}

// Set stores a value with optional TTL (0 = no expiry).
func (r *RedisMemory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis memory set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (r *RedisMemory) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis memory delete %q: %w", key, err)
	}
	return nil
}

// Exists checks whether a key is present
func (r *RedisMemory) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis memory exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Close releases the underlying Redis connection pool.
func (r *RedisMemory) Close() error {
	return r.client.Close()
}
