package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAdmitsWithinBurst(t *testing.T) {
	l := NewLimiter(60, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d := l.Allow(ctx, "caller-1")
		assert.True(t, d.Allowed)
	}
}

func TestLimiterRejectsOverBurst(t *testing.T) {
	l := NewLimiter(60, 2)
	ctx := context.Background()
	l.Allow(ctx, "caller-1")
	l.Allow(ctx, "caller-1")
	d := l.Allow(ctx, "caller-1")
	assert.False(t, d.Allowed)
}

func TestLimiterTracksIdentitiesIndependently(t *testing.T) {
	l := NewLimiter(60, 1)
	ctx := context.Background()
	d1 := l.Allow(ctx, "caller-1")
	d2 := l.Allow(ctx, "caller-2")
	assert.True(t, d1.Allowed)
	assert.True(t, d2.Allowed)
}

func TestLimiterQuotaOverrideAppliesPerIdentity(t *testing.T) {
	l := NewLimiter(60, 1)
	l.SetQuotaOverride("vip", 600)
	ctx := context.Background()
	d := l.Allow(ctx, "vip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 600, d.Limit)
}
