package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares cached values between service instances
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the server described by a redis:// URL
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(k Key) string {
	return r.prefix + k.String()
}

func (r *RedisStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := validate(key); err != nil {
		return nil, false, err
	}
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if err := validate(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Invalidate(ctx context.Context, key Key) error {
	if err := validate(key); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// InvalidateEntity removes every key of one entity type using SCAN so large keyspaces do
// not block the server
func (r *RedisStore) InvalidateEntity(ctx context.Context, entity Entity) error {
	iter := r.client.Scan(ctx, 0, r.prefix+string(entity)+":*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache entity %s: %w", entity, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Close releases the connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}
