package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SharedRedis is the optional second cache level: a Redis-backed store
// consulted before falling through to cold compute, shared across process
// instances. Values are opaque byte payloads; callers own serialization.
type SharedRedis struct {
	client *redis.Client
}

// NewSharedRedis wraps an existing redis.Client. The client's lifecycle
// (connect/close) is owned by the caller.
func NewSharedRedis(client *redis.Client) *SharedRedis {
	return &SharedRedis{client: client}
}

// Get returns the cached payload for key, or (nil, false) on a miss.
func (s *SharedRedis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores payload under key with the given TTL.
func (s *SharedRedis) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, payload, ttl).Err()
}

// Delete removes key.
func (s *SharedRedis) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// DeletePrefix removes every key matching prefix+"*". ResponseCache.
// InvalidateAll calls it with "resp:", dropping every shared-tier response
// entry.
func (s *SharedRedis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Ping reports whether Redis is reachable, used by the /api/v1/health
// readiness check for the "cache" component.
func (s *SharedRedis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
