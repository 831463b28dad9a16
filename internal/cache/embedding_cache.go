package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// EmbeddingCache is the embedding cache named in spec.md §4.4: key =
// sha256(normalized_query), value = a D-dimensional vector, TTL default 24h,
// LRU eviction when capacity is reached.
type EmbeddingCache struct {
	memory *Memory
	shared *SharedRedis // nil when the shared tier is disabled
	ttl    time.Duration
}

// NewEmbeddingCache constructs an EmbeddingCache. shared may be nil.
func NewEmbeddingCache(capacity int, ttl time.Duration, shared *SharedRedis) *EmbeddingCache {
	return &EmbeddingCache{memory: NewMemory(capacity), shared: shared, ttl: ttl}
}

// EmbeddingKey derives the cache key for a normalized query.
func EmbeddingKey(normalizedQuery string) string {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return fmt.Sprintf("emb:%x", sum)
}

// Get returns the cached vector for a normalized query, checking the
// in-process tier first and the shared tier second.
func (c *EmbeddingCache) Get(ctx context.Context, normalizedQuery string) ([]float32, bool) {
	key := EmbeddingKey(normalizedQuery)
	if v, ok := c.memory.Get(ctx, key); ok {
		return v.([]float32), true
	}
	if c.shared == nil {
		return nil, false
	}
	raw, ok := c.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	vec := decodeVector(raw)
	c.memory.Set(ctx, key, vec, c.ttl)
	return vec, true
}

// Set writes vec into both tiers (write-through).
func (c *EmbeddingCache) Set(ctx context.Context, normalizedQuery string, vec []float32) {
	key := EmbeddingKey(normalizedQuery)
	c.memory.Set(ctx, key, vec, c.ttl)
	if c.shared != nil {
		_ = c.shared.Set(ctx, key, encodeVector(vec), c.ttl)
	}
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(raw []byte) []float32 {
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec
}
