package embedding

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
)

// Fallback is a deterministic term-frequency model projected to a fixed
// dimension via a fixed random projection seeded by configuration. It binds
// when the primary model fails to initialize at process start (spec.md
// §4.1 failure policy) and never swaps back mid-process.
//
// The vocabulary grows as new terms are observed across the corpus fed
// through EmbedBatch/Embed. Because the projection matrix is generated
// per-term from a seeded hash rather than a corpus-indexed matrix, growing
// the vocabulary never changes the projection of a previously seen term —
// this is what makes repeated calls to Embed for the same normalized text
// idempotent even as other documents are indexed concurrently.
type Fallback struct {
	dimension int
	seed      int64

	mu    sync.Mutex
	cache map[string][]float32 // term -> projected unit row, memoized
}

// NewFallback constructs a Fallback provider with the given dimension and
// projection seed. The same seed must be used across a process's lifetime
// for the projection to be stable.
func NewFallback(dimension int, seed int64) *Fallback {
	return &Fallback{dimension: dimension, seed: seed, cache: make(map[string][]float32)}
}

func (f *Fallback) Dimension() int   { return f.dimension }
func (f *Fallback) Backend() Backend { return BackendFallback }

// Embed returns the term-frequency vector for a single normalized text.
func (f *Fallback) Embed(_ context.Context, text string) ([]float32, error) {
	return f.embedOne(text), nil
}

// EmbedBatch embeds each text independently; the fallback model has no
// cross-document batching benefit.
func (f *Fallback) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.embedOne(t)
	}
	return out, nil
}

func (f *Fallback) embedOne(text string) []float32 {
	terms := tokenize(text)
	if len(terms) == 0 {
		return make([]float32, f.dimension)
	}
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	acc := make([]float64, f.dimension)
	for term, count := range counts {
		row := f.projectionRow(term)
		weight := 1.0 + math.Log(float64(count))
		for i, v := range row {
			acc[i] += float64(v) * weight
		}
	}
	return toUnitVector(acc)
}

// projectionRow returns the fixed random-projection row for term, generating
// and memoizing it on first use. Each row is drawn from a PRNG seeded
// deterministically from (f.seed, term), so the same term always yields the
// same row regardless of call order or what else has been embedded.
func (f *Fallback) projectionRow(term string) []float32 {
	f.mu.Lock()
	if row, ok := f.cache[term]; ok {
		f.mu.Unlock()
		return row
	}
	f.mu.Unlock()

	rng := rand.New(rand.NewSource(f.seed ^ termSeed(term)))
	row := make([]float32, f.dimension)
	for i := range row {
		row[i] = float32(rng.NormFloat64())
	}

	f.mu.Lock()
	f.cache[term] = row
	f.mu.Unlock()
	return row
}

// termSeed derives a stable int64 from a term via FNV-1a, so projectionRow's
// PRNG seed depends only on (f.seed, term).
func termSeed(term string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(term); i++ {
		h ^= uint64(term[i])
		h *= 1099511628211
	}
	return int64(h)
}

func toUnitVector(acc []float64) []float32 {
	var sumSq float64
	for _, v := range acc {
		sumSq += v * v
	}
	out := make([]float32, len(acc))
	if sumSq == 0 {
		return out
	}
	norm := math.Sqrt(sumSq)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// tokenize splits already-normalized text on whitespace, dropping empties.
// Input is expected to have already passed through Normalize.
func tokenize(text string) []string {
	return strings.Fields(text)
}
