package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGetSetRoundTrip(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	c.Set(ctx, "k", "v", time.Minute)
	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMemoryExpiredEntryIsMiss(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	c.Set(ctx, "k", "v", -time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemory(2)
	ctx := context.Background()
	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)
	// touch "a" so "b" becomes least recently used
	c.Get(ctx, "a")
	c.Set(ctx, "c", 3, time.Minute)

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryDeleteRemovesEntry(t *testing.T) {
	c := NewMemory(10)
	ctx := context.Background()
	c.Set(ctx, "k", "v", time.Minute)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryColdMissYieldsSameAsColdStart(t *testing.T) {
	// A fresh cache and an emptied cache must both report a clean miss —
	// the cache layer is optional from a correctness standpoint.
	fresh := NewMemory(10)
	emptied := NewMemory(10)
	ctx := context.Background()
	emptied.Set(ctx, "k", "v", time.Minute)
	emptied.Clear()

	_, okFresh := fresh.Get(ctx, "k")
	_, okEmptied := emptied.Get(ctx, "k")
	assert.False(t, okFresh)
	assert.False(t, okEmptied)
}

func TestResponseCacheKeyDiffersByVerbosity(t *testing.T) {
	full := ResponseKey("shoes", "tools_only", "full", "fp")
	minimal := ResponseKey("shoes", "tools_only", "minimal", "fp")
	assert.NotEqual(t, full, minimal)
}

func TestFingerprintDependsOnAttributeValues(t *testing.T) {
	fp1 := Fingerprint([]string{"admin"}, map[string]any{"region": "us"})
	fp2 := Fingerprint([]string{"admin"}, map[string]any{"region": "us"})
	assert.Equal(t, fp1, fp2)

	fp3 := Fingerprint([]string{"admin"}, map[string]any{"region": "eu"})
	assert.NotEqual(t, fp1, fp3)
}

func TestFingerprintRoleOrderInsensitive(t *testing.T) {
	fp1 := Fingerprint([]string{"a", "b"}, nil)
	fp2 := Fingerprint([]string{"b", "a"}, nil)
	assert.Equal(t, fp1, fp2)
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	c := NewEmbeddingCache(10, time.Minute, nil)
	ctx := context.Background()
	vec := []float32{0.1, 0.2, 0.3}
	c.Set(ctx, "buy shoes", vec)
	got, ok := c.Get(ctx, "buy shoes")
	assert.True(t, ok)
	assert.Equal(t, vec, got)
}
