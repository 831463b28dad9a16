// Package mongo implements auth.APIKeyLookup backed by MongoDB, the
// production persistence path for issued API keys (spec.md §3 "hashed
// secret" lookup), mirroring registryread/mongo's collection-wrapper style.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/capsearch/internal/auth"
	"goa.design/capsearch/internal/domain"
)

const (
	apiKeysCollection = "api_keys"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo-backed APIKeyLookup.
type Options struct {
	Client   *mongodriver.Client
	Database string
	Timeout  time.Duration
}

// Store implements auth.APIKeyLookup over one collection, indexed by the
// hashed secret so a raw key is never the lookup key.
type Store struct {
	keys    *mongodriver.Collection
	timeout time.Duration
}

var _ auth.APIKeyLookup = (*Store)(nil)

// New constructs a Store and ensures the index it relies on exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("auth/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("auth/mongo: database is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Store{
		keys:    opts.Client.Database(opts.Database).Collection(apiKeysCollection),
		timeout: timeout,
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.keys.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "hashed_secret", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("auth/mongo: ensure api keys index: %w", err)
	}
	return s, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// LookupByHash resolves a presented key's hash to its stored record.
func (s *Store) LookupByHash(ctx context.Context, hashedSecret string) (domain.APIKey, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc apiKeyDocument
	err := s.keys.FindOne(ctx, bson.M{"hashed_secret": hashedSecret}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.APIKey{}, false, nil
	}
	if err != nil {
		return domain.APIKey{}, false, fmt.Errorf("auth/mongo: lookup api key: %w", err)
	}
	return doc.toDomain(), true, nil
}

type apiKeyDocument struct {
	ID            string         `bson:"_id"`
	HashedSecret  string         `bson:"hashed_secret"`
	OwnerUserID   string         `bson:"owner_user_id"`
	Roles         []string       `bson:"roles,omitempty"`
	Attributes    map[string]any `bson:"attributes,omitempty"`
	Scopes        []string       `bson:"scopes,omitempty"`
	QuotaOverride *int           `bson:"quota_override,omitempty"`
	ExpiresAt     *time.Time     `bson:"expires_at,omitempty"`
	Active        bool           `bson:"active"`
}

func (d apiKeyDocument) toDomain() domain.APIKey {
	return domain.APIKey{
		ID:            d.ID,
		HashedSecret:  d.HashedSecret,
		OwnerUserID:   d.OwnerUserID,
		Roles:         d.Roles,
		Attributes:    d.Attributes,
		Scopes:        d.Scopes,
		QuotaOverride: d.QuotaOverride,
		ExpiresAt:     d.ExpiresAt,
		Active:        d.Active,
	}
}
