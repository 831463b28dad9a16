// Package feedback implements C6: the append-only search/selection log and
// the time-decayed, position-bias-corrected boost ranker.
package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"goa.design/capsearch/internal/domain"
)

// ErrUnknownSearch is returned when log_selection references a search id
// log_search never produced, or references a position that id didn't
// occupy in that response.
var ErrUnknownSearch = errors.New("feedback: unknown search id or position")

// Store is the append-only feedback log. Both writes are append-only; no
// updates, per spec.md §4.6.
type Store interface {
	LogSearch(ctx context.Context, rec domain.SearchQueryRecord) error
	LogSelection(ctx context.Context, rec domain.UserSelectionRecord) error
	// Snapshot returns every selection and search record observed within
	// the window, used by the ranker to recompute boosts on its own
	// cadence. It does not require a global lock on the writers.
	Snapshot(ctx context.Context, since time.Time) ([]domain.SearchQueryRecord, []domain.UserSelectionRecord, error)
}

// MemoryStore is an in-process Store, grounded on the same
// sync.RWMutex-guarded-map discipline used throughout internal/registryread
// and internal/cache for this deployment's other append/read seams.
type MemoryStore struct {
	mu         sync.RWMutex
	searches   map[string]domain.SearchQueryRecord
	selections []domain.UserSelectionRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{searches: make(map[string]domain.SearchQueryRecord)}
}

var _ Store = (*MemoryStore)(nil)

// LogSearch appends a search-query record, keyed by its SearchID.
func (s *MemoryStore) LogSearch(ctx context.Context, rec domain.SearchQueryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[rec.SearchID] = rec
	return nil
}

// LogSelection appends a user-selection record after verifying it refers to
// an earlier log_search id and that the selected id actually occupied that
// position in that response, per spec.md §9 edge case.
func (s *MemoryStore) LogSelection(ctx context.Context, rec domain.UserSelectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	search, ok := s.searches[rec.SearchID]
	if !ok {
		return ErrUnknownSearch
	}
	if rec.Position < 1 || rec.Position > len(search.ResultIDs) || search.ResultIDs[rec.Position-1] != rec.SelectedID {
		return ErrUnknownSearch
	}
	s.selections = append(s.selections, rec)
	return nil
}

// Snapshot returns the subset of records observed at or after since.
func (s *MemoryStore) Snapshot(ctx context.Context, since time.Time) ([]domain.SearchQueryRecord, []domain.UserSelectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	searches := make([]domain.SearchQueryRecord, 0, len(s.searches))
	for _, rec := range s.searches {
		if !rec.Timestamp.Before(since) {
			searches = append(searches, rec)
		}
	}
	selections := make([]domain.UserSelectionRecord, 0, len(s.selections))
	for _, rec := range s.selections {
		if !rec.Timestamp.Before(since) {
			selections = append(selections, rec)
		}
	}
	return searches, selections, nil
}
