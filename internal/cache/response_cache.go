package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ResponseCache is the response cache named in spec.md §4.4: key =
// sha256(normalized_query || mode || verbosity || user_context_fingerprint),
// value = serialized search response, TTL default 1h, bulk-invalidated by
// the invalidation controller on registry mutation.
//
// The response cache MUST NOT store results across verbosity levels under
// the same key — verbosity is part of the key, not a query-time filter
// applied after a cache hit.
type ResponseCache struct {
	memory *Memory
	shared *SharedRedis // nil when the shared tier is disabled
	ttl    time.Duration
}

// NewResponseCache constructs a ResponseCache. shared may be nil.
func NewResponseCache(capacity int, ttl time.Duration, shared *SharedRedis) *ResponseCache {
	return &ResponseCache{memory: NewMemory(capacity), shared: shared, ttl: ttl}
}

// ResponseKey derives the cache key for one (query, mode, verbosity,
// fingerprint) tuple.
func ResponseKey(normalizedQuery, mode, verbosity, fingerprint string) string {
	sum := sha256.Sum256([]byte(normalizedQuery + "\x00" + mode + "\x00" + verbosity + "\x00" + fingerprint))
	return fmt.Sprintf("resp:%x", sum)
}

// Fingerprint computes the stable user-context fingerprint: a hash over the
// sorted caller role set and every key=value pair of the attribute map it
// is given, in sorted key order. It does not narrow the map to the
// attributes that access policies reference; Pipeline.Search passes the
// caller's full attribute map.
func Fingerprint(roles []string, referencedAttributes map[string]any) string {
	sortedRoles := append([]string(nil), roles...)
	sort.Strings(sortedRoles)

	keys := make([]string, 0, len(referencedAttributes))
	for k := range referencedAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.Join(sortedRoles, ","))
	b.WriteString("|")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, referencedAttributes[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}

// Get returns the cached response payload, checking the in-process tier
// first and the shared tier second.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.memory.Get(ctx, key); ok {
		return v.([]byte), true
	}
	if c.shared == nil {
		return nil, false
	}
	raw, ok := c.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	c.memory.Set(ctx, key, raw, c.ttl)
	return raw, true
}

// Set writes payload into both tiers (write-through).
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte) {
	c.memory.Set(ctx, key, payload, c.ttl)
	if c.shared != nil {
		_ = c.shared.Set(ctx, key, payload, c.ttl)
	}
}

// InvalidateAll clears every cached response in both tiers. The
// invalidation controller calls it after every applied mutation event and
// after a full rebuild.
func (c *ResponseCache) InvalidateAll(ctx context.Context) {
	c.memory.Clear()
	if c.shared != nil {
		_ = c.shared.DeletePrefix(ctx, "resp:")
	}
}
