package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackEmbedIsUnitNorm(t *testing.T) {
	f := NewFallback(64, 7)
	vec, err := f.Embed(context.Background(), "buy running shoes online")
	require.NoError(t, err)

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

func TestFallbackEmbedIsDeterministic(t *testing.T) {
	f := NewFallback(32, 99)
	a, err := f.Embed(context.Background(), "process payment")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "process payment")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFallbackEmbedIsIdempotentUnderNormalize(t *testing.T) {
	f := NewFallback(32, 1)
	text := "  Process   Payment  "
	once := Normalize(text)
	twice := Normalize(once)
	assert.Equal(t, once, twice)

	a, err := f.Embed(context.Background(), once)
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), twice)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFallbackEmptyTextYieldsZeroVector(t *testing.T) {
	f := NewFallback(16, 3)
	vec, err := f.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestFallbackProjectionStableAcrossVocabularyGrowth(t *testing.T) {
	f := NewFallback(16, 5)
	first, err := f.Embed(context.Background(), "shoes")
	require.NoError(t, err)

	// Embedding unrelated terms must not perturb a previously seen term's
	// projection row.
	_, err = f.Embed(context.Background(), "an entirely unrelated payment workflow query")
	require.NoError(t, err)

	second, err := f.Embed(context.Background(), "shoes")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
