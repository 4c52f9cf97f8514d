package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each document under prefix+name as a plain string value
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBackend creates a backend over a new client
func NewRedisBackend(options redis.Options, prefix string) *RedisBackend {
	return &RedisBackend{rdb: redis.NewClient(&options), prefix: prefix}
}

// Ping checks connectivity
func (rb *RedisBackend) Ping(ctx context.Context) error {
	return rb.rdb.Ping(ctx).Err()
}

// Close closes the redis connection
func (rb *RedisBackend) Close() error {
	return rb.rdb.Close()
}

// Load implements Backend
func (rb *RedisBackend) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := rb.rdb.Get(ctx, rb.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s from redis: %w", name, err)
	}
	return data, nil
}

// Save implements Backend
func (rb *RedisBackend) Save(ctx context.Context, name string, data []byte) error {
	if err := rb.rdb.Set(ctx, rb.prefix+name, data, 0).Err(); err != nil {
		return fmt.Errorf("save document %s to redis: %w", name, err)
	}
	return nil
}
