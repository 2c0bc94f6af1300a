package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal liveness probe used by the supervisor and the
// health monitor.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is the wire client for the durable key-value store.
type Backend interface {
	Pinger
	// Get returns the stored payload, or ok=false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RedisBackend implements Backend on top of go-redis.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend parses the backend URL and builds a client. A malformed
// URL is a configuration error and the one fatal condition in this
// subsystem; it is surfaced once at startup.
func NewRedisBackend(rawURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", rawURL, err)
	}
	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

// Ping performs a minimal round-trip against the backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("backend get %q: %w", key, err)
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("backend set %q: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("backend delete %q: %w", key, err)
	}
	return nil
}

// Close releases the client's connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
