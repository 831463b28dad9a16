// Package mongo implements feedback.Store backed by MongoDB, mirroring the
// collection-wrapper style of registryread/mongo so the append-only search
// and selection logs survive a process restart in a production deployment
// (spec.md §4.6 "same registryread persistence seam").
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/capsearch/internal/domain"
	"goa.design/capsearch/internal/feedback"
)

const (
	searchesCollection   = "search_queries"
	selectionsCollection = "user_selections"
	defaultTimeout       = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// Store implements feedback.Store over two append-only collections.
type Store struct {
	searches   *mongodriver.Collection
	selections *mongodriver.Collection
	timeout    time.Duration
}

var _ feedback.Store = (*Store)(nil)

// New constructs a Store and ensures the indexes it relies on exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("feedback/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("feedback/mongo: database is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	db := opts.Client.Database(opts.Database)
	s := &Store{
		searches:   db.Collection(searchesCollection),
		selections: db.Collection(selectionsCollection),
		timeout:    timeout,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.searches.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "search_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("feedback/mongo: ensure searches index: %w", err)
	}
	if _, err := s.searches.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: 1}},
	}); err != nil {
		return fmt.Errorf("feedback/mongo: ensure searches timestamp index: %w", err)
	}
	if _, err := s.selections.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: 1}},
	}); err != nil {
		return fmt.Errorf("feedback/mongo: ensure selections timestamp index: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// LogSearch appends a search-query record, upserted by its search id so a
// retried write is idempotent.
func (s *Store) LogSearch(ctx context.Context, rec domain.SearchQueryRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := fromSearchRecord(rec)
	_, err := s.searches.ReplaceOne(ctx, bson.M{"search_id": rec.SearchID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("feedback/mongo: log search: %w", err)
	}
	return nil
}

// LogSelection verifies the referenced search id and position before
// appending a selection record, matching MemoryStore's validation so the
// same ErrUnknownSearch edge case holds regardless of backing store.
func (s *Store) LogSelection(ctx context.Context, rec domain.UserSelectionRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var searchDoc searchQueryDocument
	err := s.searches.FindOne(ctx, bson.M{"search_id": rec.SearchID}).Decode(&searchDoc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return feedback.ErrUnknownSearch
	}
	if err != nil {
		return fmt.Errorf("feedback/mongo: find search: %w", err)
	}
	if rec.Position < 1 || rec.Position > len(searchDoc.ResultIDs) || searchDoc.ResultIDs[rec.Position-1] != rec.SelectedID {
		return feedback.ErrUnknownSearch
	}

	if _, err := s.selections.InsertOne(ctx, fromSelectionRecord(rec)); err != nil {
		return fmt.Errorf("feedback/mongo: log selection: %w", err)
	}
	return nil
}

// Snapshot returns every search and selection record observed at or after
// since, for the ranker's periodic recompute pass.
func (s *Store) Snapshot(ctx context.Context, since time.Time) ([]domain.SearchQueryRecord, []domain.UserSelectionRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	searchCur, err := s.searches.Find(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
	if err != nil {
		return nil, nil, fmt.Errorf("feedback/mongo: list searches: %w", err)
	}
	defer searchCur.Close(ctx)
	var searchDocs []searchQueryDocument
	if err := searchCur.All(ctx, &searchDocs); err != nil {
		return nil, nil, fmt.Errorf("feedback/mongo: decode searches: %w", err)
	}

	selectionCur, err := s.selections.Find(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
	if err != nil {
		return nil, nil, fmt.Errorf("feedback/mongo: list selections: %w", err)
	}
	defer selectionCur.Close(ctx)
	var selectionDocs []userSelectionDocument
	if err := selectionCur.All(ctx, &selectionDocs); err != nil {
		return nil, nil, fmt.Errorf("feedback/mongo: decode selections: %w", err)
	}

	searches := make([]domain.SearchQueryRecord, 0, len(searchDocs))
	for _, d := range searchDocs {
		searches = append(searches, d.toDomain())
	}
	selections := make([]domain.UserSelectionRecord, 0, len(selectionDocs))
	for _, d := range selectionDocs {
		selections = append(selections, d.toDomain())
	}
	return searches, selections, nil
}
