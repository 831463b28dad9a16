package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/capsearch/internal/domain"
)

func TestRankerStartsWithEmptyBoostMap(t *testing.T) {
	r := NewRanker(NewMemoryStore(), Bounds{Min: -0.1, Max: 0.2})
	assert.Equal(t, float64(0), r.Current().Boost("anything"))
}

func TestRecomputeProducesClampedPositiveBoost(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 10; i++ {
		id := "s" + string(rune('0'+i))
		require.NoError(t, store.LogSearch(ctx, domain.SearchQueryRecord{
			SearchID:  id,
			ResultIDs: []string{"svc-popular"},
			Timestamp: now,
		}))
		require.NoError(t, store.LogSelection(ctx, domain.UserSelectionRecord{
			SearchID: id, Position: 1, SelectedID: "svc-popular", Timestamp: now,
		}))
	}

	r := NewRanker(store, Bounds{Min: -0.1, Max: 0.2})
	require.NoError(t, r.Recompute(ctx, now))

	boost := r.Current().Boost("svc-popular")
	assert.Greater(t, boost, 0.0)
	assert.LessOrEqual(t, boost, 0.2)
}

func TestRecomputeYieldsZeroBoostForUnselectedResult(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.LogSearch(ctx, domain.SearchQueryRecord{
		SearchID: "s1", ResultIDs: []string{"svc-ignored"}, Timestamp: now,
	}))

	r := NewRanker(store, Bounds{Min: -0.1, Max: 0.2})
	require.NoError(t, r.Recompute(ctx, now))

	assert.Equal(t, float64(0), r.Current().Boost("svc-ignored"))
}

func TestRecomputeDecaysOlderSelections(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.LogSearch(ctx, domain.SearchQueryRecord{SearchID: "recent", ResultIDs: []string{"svc-a"}, Timestamp: now}))
	require.NoError(t, store.LogSelection(ctx, domain.UserSelectionRecord{SearchID: "recent", Position: 1, SelectedID: "svc-a", Timestamp: now}))

	require.NoError(t, store.LogSearch(ctx, domain.SearchQueryRecord{SearchID: "stale", ResultIDs: []string{"svc-b"}, Timestamp: now.Add(-20 * 24 * time.Hour)}))
	require.NoError(t, store.LogSelection(ctx, domain.UserSelectionRecord{SearchID: "stale", Position: 1, SelectedID: "svc-b", Timestamp: now.Add(-20 * 24 * time.Hour)}))

	r := NewRanker(store, Bounds{Min: -0.1, Max: 1.0}, WithWindow(60*24*time.Hour))
	require.NoError(t, r.Recompute(ctx, now))

	assert.Greater(t, r.Current().Boost("svc-a"), r.Current().Boost("svc-b"))
}

func TestPositionBiasRaisesBoostForLowerRankedClicks(t *testing.T) {
	top := NewMemoryStore()
	bottom := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, top.LogSearch(ctx, domain.SearchQueryRecord{SearchID: "s", ResultIDs: []string{"svc-x"}, Timestamp: now}))
	require.NoError(t, top.LogSelection(ctx, domain.UserSelectionRecord{SearchID: "s", Position: 1, SelectedID: "svc-x", Timestamp: now}))

	require.NoError(t, bottom.LogSearch(ctx, domain.SearchQueryRecord{SearchID: "s", ResultIDs: []string{"a", "b", "c", "d", "e", "f", "g", "h", "svc-x"}, Timestamp: now}))
	require.NoError(t, bottom.LogSelection(ctx, domain.UserSelectionRecord{SearchID: "s", Position: 9, SelectedID: "svc-x", Timestamp: now}))

	rTop := NewRanker(top, Bounds{Min: -1, Max: 10})
	rBottom := NewRanker(bottom, Bounds{Min: -1, Max: 10})
	require.NoError(t, rTop.Recompute(ctx, now))
	require.NoError(t, rBottom.Recompute(ctx, now))

	// A click at a low-visibility position implies stronger relevance than
	// an equally-weighted click at the top slot, once position bias
	// divides out the top slot's inflated baseline click probability.
	assert.Greater(t, rBottom.Current().Boost("svc-x"), rTop.Current().Boost("svc-x"))
}

func TestDefaultPositionBiasDecreasesWithPosition(t *testing.T) {
	assert.Greater(t, DefaultPositionBias(1), DefaultPositionBias(5))
}
