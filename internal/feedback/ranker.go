package feedback

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// DecayBucket pairs a lookback window with the weight given to selections
// observed within it; the first bucket whose window contains a selection's
// age wins. Suggested defaults per spec.md §4.6.
type DecayBucket struct {
	Within time.Duration
	Weight float64
}

// DefaultDecayBuckets is the suggested 24h/7d/30d/older decay schedule.
var DefaultDecayBuckets = []DecayBucket{
	{Within: 24 * time.Hour, Weight: 1.0},
	{Within: 7 * 24 * time.Hour, Weight: 0.7},
	{Within: 30 * 24 * time.Hour, Weight: 0.3},
}

// olderWeight is applied to selections outside every bucket's window.
const olderWeight = 0.1

// PositionBiasFunc returns the empirical click probability at a 1-indexed
// result position, used to correct observed click-through rate for the fact
// that higher positions draw clicks regardless of relevance.
type PositionBiasFunc func(position int) float64

// DefaultPositionBias implements the documented default noted as an open
// question in spec.md §9: 1/log2(position+1).
func DefaultPositionBias(position int) float64 {
	return 1 / math.Log2(float64(position)+1)
}

// Bounds clamps a boost factor to a configured range, preventing a single
// hot result from dominating ranking (spec.md §4.6).
type Bounds struct {
	Min float64
	Max float64
}

// clamp restricts v to [b.Min, b.Max].
func (b Bounds) clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// BoostMap is the immutable, precomputed per-id boost factor set the hot
// path reads. Never scans the feedback log directly (spec.md §4.6).
type BoostMap map[string]float64

// Boost returns the boost factor for id, or 0 when absent — an id with no
// feedback history contributes no adjustment.
func (m BoostMap) Boost(id string) float64 {
	return m[id]
}

// Ranker owns the current BoostMap and recomputes it on a timer from a
// Store snapshot, swapping the map atomically so readers on the hot path
// never block on or observe a partially-rebuilt map. Grounded on the
// rebuild-then-atomic-swap discipline used by internal/invalidation and
// internal/vectorindex's snapshot reload, generalized here to a
// map[string]float64 instead of a vector index.
type Ranker struct {
	store    Store
	buckets  []DecayBucket
	bias     PositionBiasFunc
	bounds   Bounds
	window   time.Duration
	current  atomic.Pointer[BoostMap]
	stopCh   chan struct{}
}

// RankerOption configures a Ranker beyond its required constructor args.
type RankerOption func(*Ranker)

// WithDecayBuckets overrides DefaultDecayBuckets.
func WithDecayBuckets(buckets []DecayBucket) RankerOption {
	return func(r *Ranker) { r.buckets = buckets }
}

// WithPositionBias overrides DefaultPositionBias.
func WithPositionBias(fn PositionBiasFunc) RankerOption {
	return func(r *Ranker) { r.bias = fn }
}

// WithWindow overrides the lookback window used for each recompute
// (defaults to the widest decay bucket window).
func WithWindow(window time.Duration) RankerOption {
	return func(r *Ranker) { r.window = window }
}

// NewRanker constructs a Ranker with an empty boost map; call Recompute or
// StartRefresh to populate it.
func NewRanker(store Store, bounds Bounds, opts ...RankerOption) *Ranker {
	r := &Ranker{
		store:   store,
		buckets: DefaultDecayBuckets,
		bias:    DefaultPositionBias,
		bounds:  bounds,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.window == 0 {
		r.window = widestWindow(r.buckets)
	}
	empty := BoostMap{}
	r.current.Store(&empty)
	return r
}

func widestWindow(buckets []DecayBucket) time.Duration {
	widest := 30 * 24 * time.Hour
	for _, b := range buckets {
		if b.Within > widest {
			widest = b.Within
		}
	}
	return widest
}

// Current returns the boost map currently in effect for the hot path.
func (r *Ranker) Current() BoostMap {
	return *r.current.Load()
}

// Recompute rebuilds the boost map from a fresh Store snapshot and swaps it
// in atomically. Safe to call concurrently with StartRefresh's own ticks.
func (r *Ranker) Recompute(ctx context.Context, now time.Time) error {
	since := now.Add(-r.window)
	searches, selections, err := r.store.Snapshot(ctx, since)
	if err != nil {
		return err
	}
	resultCount := make(map[string]float64)
	clickCount := make(map[string]float64)

	for _, s := range searches {
		for _, id := range s.ResultIDs {
			resultCount[id]++
		}
	}
	for _, sel := range selections {
		weight := decayWeight(r.buckets, now.Sub(sel.Timestamp))
		biasCorrection := r.bias(sel.Position)
		if biasCorrection <= 0 {
			biasCorrection = 1
		}
		clickCount[sel.SelectedID] += weight / biasCorrection
	}

	next := make(BoostMap, len(resultCount))
	for id, impressions := range resultCount {
		if impressions == 0 {
			continue
		}
		ctr := clickCount[id] / impressions
		next[id] = r.bounds.clamp(ctr)
	}
	r.current.Store(&next)
	return nil
}

// decayWeight returns the weight for an observation of the given age,
// falling through the bucket schedule in order and defaulting to
// olderWeight when no bucket's window contains it.
func decayWeight(buckets []DecayBucket, age time.Duration) float64 {
	for _, b := range buckets {
		if age <= b.Within {
			return b.Weight
		}
	}
	return olderWeight
}

// StartRefresh recomputes the boost map once immediately, then on every
// tick of the given interval, until ctx is canceled or StopRefresh is
// called. Runs in its own goroutine; callers should ensure at most one
// refresh loop runs per Ranker.
func (r *Ranker) StartRefresh(ctx context.Context, interval time.Duration, now func() time.Time) {
	r.stopCh = make(chan struct{})
	go func() {
		_ = r.Recompute(ctx, now())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				_ = r.Recompute(ctx, now())
			}
		}
	}()
}

// StopRefresh stops a refresh loop started by StartRefresh. Safe to call at
// most once per StartRefresh call.
func (r *Ranker) StopRefresh() {
	if r.stopCh != nil {
		close(r.stopCh)
	}
}
