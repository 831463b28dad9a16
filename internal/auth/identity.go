// Package auth implements C8: bearer-token and API-key identity resolution
// and per-identity rate limiting in front of the search pipeline.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"goa.design/capsearch/internal/domain"
)

// Sentinel errors the HTTP layer maps to the external "unauthenticated" kind
// per spec.md §7.
var (
	ErrMissingCredential   = errors.New("auth: no bearer token or api key presented")
	ErrAmbiguousCredential = errors.New("auth: both bearer token and api key presented")
	ErrInvalidToken        = errors.New("auth: bearer token invalid or expired")
	ErrUnknownAPIKey       = errors.New("auth: api key not recognized")
	ErrExpiredAPIKey       = errors.New("auth: api key expired")
	ErrInactiveIdentity    = errors.New("auth: identity deactivated")
)

// APIKeyLookup resolves a presented API key to its stored record by its
// hash, never by the raw secret (spec.md §3 "hashed secret").
type APIKeyLookup interface {
	LookupByHash(ctx context.Context, hashedSecret string) (domain.APIKey, bool, error)
}

// HashAPIKey derives the stable hash an APIKeyLookup indexes by.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Credentials is the pair of request-supplied auth inputs; at most one
// field may be non-empty (spec.md §6 "exactly one must be present").
type Credentials struct {
	BearerToken string
	APIKey      string
}

// Resolver turns a set of presented Credentials into a domain.Identity.
type Resolver struct {
	verifier TokenVerifier
	keys     APIKeyLookup
	now      func() time.Time
}

// NewResolver constructs a Resolver. keys may be nil if API-key auth is
// disabled for a deployment.
func NewResolver(verifier TokenVerifier, keys APIKeyLookup) *Resolver {
	return &Resolver{verifier: verifier, keys: keys, now: time.Now}
}

// Resolve validates exactly one credential and returns the caller identity.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (domain.Identity, error) {
	hasBearer := strings.TrimSpace(creds.BearerToken) != ""
	hasKey := strings.TrimSpace(creds.APIKey) != ""

	switch {
	case !hasBearer && !hasKey:
		return domain.Identity{}, ErrMissingCredential
	case hasBearer && hasKey:
		return domain.Identity{}, ErrAmbiguousCredential
	case hasBearer:
		return r.resolveBearer(creds.BearerToken)
	default:
		return r.resolveAPIKey(ctx, creds.APIKey)
	}
}

func (r *Resolver) resolveBearer(token string) (domain.Identity, error) {
	claims, err := r.verifier.Verify(token, r.now())
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	id := domain.Identity{
		ID:     claims.Subject,
		Roles:  claims.Roles,
		Scopes: claims.Scopes,
		Active: true,
	}
	return id, nil
}

func (r *Resolver) resolveAPIKey(ctx context.Context, rawKey string) (domain.Identity, error) {
	if r.keys == nil {
		return domain.Identity{}, ErrUnknownAPIKey
	}
	hashed := HashAPIKey(rawKey)
	key, ok, err := r.keys.LookupByHash(ctx, hashed)
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, ErrUnknownAPIKey
	}
	if !key.Active {
		return domain.Identity{}, ErrInactiveIdentity
	}
	if key.ExpiresAt != nil && r.now().After(*key.ExpiresAt) {
		return domain.Identity{}, ErrExpiredAPIKey
	}
	return domain.Identity{
		ID:         key.OwnerUserID,
		Roles:      key.Roles,
		Attributes: key.Attributes,
		Scopes:     key.Scopes,
		Active:     true,
	}, nil
}
