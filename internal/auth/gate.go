package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"goa.design/capsearch/internal/domain"
)

// ErrRateLimited is returned by Gate.Admit when the identity's bucket is
// exhausted; the HTTP layer maps this to a 429 with Retry-After.
var ErrRateLimited = errors.New("auth: rate limit exceeded")

// Gate is C8: it resolves a caller identity from request credentials and
// enforces its rate-limit quota, emitting one admission decision per call.
// Counters update on every successful admission, including cache hits
// (spec.md §4.8) — callers invoke Admit once per request regardless of
// whether the pipeline later serves from cache.
type Gate struct {
	resolver *Resolver
	limiter  *Limiter
}

// NewGate constructs a Gate from an identity resolver and a rate limiter.
func NewGate(resolver *Resolver, limiter *Limiter) *Gate {
	return &Gate{resolver: resolver, limiter: limiter}
}

// Admit resolves creds to an identity and checks its rate-limit bucket in
// one call, returning the identity plus the rate-limit Decision so the
// HTTP layer can set X-RateLimit-* headers on every admitted (and
// rate-limited) response. A resolution failure returns a zero Decision.
func (g *Gate) Admit(ctx context.Context, creds Credentials) (domain.Identity, Decision, error) {
	identity, err := g.resolver.Resolve(ctx, creds)
	if err != nil {
		return domain.Identity{}, Decision{}, err
	}
	decision := g.limiter.Allow(ctx, identity.ID)
	if !decision.Allowed {
		return identity, decision, ErrRateLimited
	}
	return identity, decision, nil
}

// CredentialsFromRequest extracts bearer/api-key credentials from an HTTP
// request per spec.md §6: `Authorization: Bearer <token>`, `X-API-Key:
// <key>`, or `?api_key=<key>`.
func CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		creds.BearerToken = strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		creds.APIKey = key
	} else if key := r.URL.Query().Get("api_key"); key != "" {
		creds.APIKey = key
	}
	return creds
}
