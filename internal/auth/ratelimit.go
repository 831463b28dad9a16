package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goa.design/pulse/rmap"
)

// Decision reports the outcome of a rate-limit admission check along with
// the counters the HTTP layer surfaces as X-RateLimit-* headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// clusterMap is the subset of rmap.Map a cluster Limiter publishes its
// remaining counts through, mirrored from the reference adaptive rate
// limiter's own narrow interface over *rmap.Map.
type clusterMap interface {
	Get(key string) (string, bool)
	SetIfNotExists(ctx context.Context, key, value string) (bool, error)
	TestAndSet(ctx context.Context, key, test, value string) (string, error)
}

type rmapClusterMap struct{ m *rmap.Map }

func (c *rmapClusterMap) Get(key string) (string, bool) { return c.m.Get(key) }
func (c *rmapClusterMap) SetIfNotExists(ctx context.Context, key, value string) (bool, error) {
	return c.m.SetIfNotExists(ctx, key, value)
}
func (c *rmapClusterMap) TestAndSet(ctx context.Context, key, test, value string) (string, error) {
	return c.m.TestAndSet(ctx, key, test, value)
}

// Limiter enforces a per-minute token-bucket quota per identity, per
// spec.md §4.8. Process-local by default; when constructed with a Pulse
// replicated map it additionally publishes each decision's remaining count
// to the map. Admission and the reported Remaining always come from the
// local bucket; values published by other processes are not read back.
type Limiter struct {
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
	perMinute     int
	burst         int
	quotaOverride map[string]int
	cluster       clusterMap
}

// NewLimiter constructs a process-local Limiter with a default per-minute
// rate and burst, both positive integers per spec.md §6.
func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{
		limiters:      make(map[string]*rate.Limiter),
		perMinute:     perMinute,
		burst:         burst,
		quotaOverride: make(map[string]int),
	}
}

// NewClusterLimiter constructs a Limiter that also reports each admission
// decision's remaining count into a Pulse replicated map (see
// reportCluster). The published values do not feed back into admission or
// into X-RateLimit-Remaining, which stay per-process.
func NewClusterLimiter(perMinute, burst int, m *rmap.Map) *Limiter {
	l := NewLimiter(perMinute, burst)
	if m != nil {
		l.cluster = &rmapClusterMap{m: m}
	}
	return l
}

// SetQuotaOverride sets a per-identity quota that supersedes the default
// per-minute rate, per spec.md §3 "optional per-key quota override".
func (l *Limiter) SetQuotaOverride(identityID string, perMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quotaOverride[identityID] = perMinute
	delete(l.limiters, identityID) // force re-creation at the new rate
}

// Allow admits one request for identityID, consuming one token from its
// bucket, and reports the resulting counters.
func (l *Limiter) Allow(ctx context.Context, identityID string) Decision {
	l.mu.Lock()
	lim, limit := l.limiterForLocked(identityID)
	allowed := lim.Allow()
	l.mu.Unlock()

	remaining := int(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Minute),
	}
	if l.cluster != nil {
		l.reportCluster(ctx, identityID, decision)
	}
	return decision
}

func (l *Limiter) limiterForLocked(identityID string) (*rate.Limiter, int) {
	perMinute := l.perMinute
	if override, ok := l.quotaOverride[identityID]; ok {
		perMinute = override
	}
	lim, ok := l.limiters[identityID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), l.burst)
		l.limiters[identityID] = lim
	}
	return lim, perMinute
}

// reportCluster best-effort publishes this process's remaining count under
// the identity's key, overwriting any earlier value. Limiter never reads
// the key back. Failures are non-fatal: the local decision has already
// been made.
func (l *Limiter) reportCluster(ctx context.Context, identityID string, d Decision) {
	key := "capsearch:ratelimit:" + identityID
	value := strconv.Itoa(d.Remaining)
	if _, err := l.cluster.SetIfNotExists(ctx, key, value); err != nil {
		return
	}
	if cur, ok := l.cluster.Get(key); ok {
		_, _ = l.cluster.TestAndSet(ctx, key, cur, value)
	}
}
