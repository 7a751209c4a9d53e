// Package queue implements the Persist Queue and Multi-Worker Queue: a FIFO
// abstraction over an external counter-based key-value store, and the
// sticky-sharding wrapper that fans a single logical queue across N
// worker-owned siblings.
package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KVStore is the external counter-based store the queue is layered on. The
// original implementation used a memcached server addressed by incr/get/
// set/delete; this module speaks the same four operations against Redis,
// which exposes the same atomic INCR primitive over a supported Go client.
type KVStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RedisStore adapts a *redis.Client to KVStore.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a RedisStore from a connection URI such as
// "redis://host:6379/0", the shape of espersistd_uri in the configuration.
func NewRedisStore(uri string) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse queue store uri: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by
// callers that share one Redis connection across several queues.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
