// Package cache implements the two-tier cache (C4): an in-process LRU+TTL
// tier with background refresh, and an optional shared Redis tier consulted
// before falling through to cold compute.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// RefreshFunc is called when a cache entry needs to be refreshed. It
// receives the key and should return the refreshed value.
type RefreshFunc func(ctx context.Context, key string) (any, error)

// Memory is an in-memory LRU cache with per-entry TTL and optional
// background refresh, generalized to an opaque key/value store so both the
// embedding cache and the response cache can share one implementation.
//
// Both C4 caches are optional from a correctness standpoint: a cold miss
// must yield identical results to a cold start, so callers never treat a
// miss as an error.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	refreshFunc     RefreshFunc
	refreshCooldown time.Duration
	refreshCtx      context.Context
	refreshCancel   context.CancelFunc
	refreshWg       sync.WaitGroup
	refreshCh       chan string
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	ttl       time.Duration
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithRefreshFunc sets the function used to refresh entries approaching
// expiry. When set, Get triggers a background refresh once an entry is
// within 20% of its TTL from expiring.
func WithRefreshFunc(fn RefreshFunc) Option {
	return func(c *Memory) { c.refreshFunc = fn }
}

// WithRefreshCooldown sets the minimum interval between refresh attempts
// for the same key. Defaults to 10 seconds.
func WithRefreshCooldown(d time.Duration) Option {
	return func(c *Memory) { c.refreshCooldown = d }
}

// NewMemory constructs a Memory cache bounded to capacity entries (0 means
// unbounded).
func NewMemory(capacity int, opts ...Option) *Memory {
	c := &Memory{
		capacity:        capacity,
		entries:         make(map[string]*list.Element),
		order:           list.New(),
		refreshCh:       make(chan string, 100),
		refreshCooldown: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, or (nil, false) on a miss or
// expired entry.
func (c *Memory) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	e := el.Value.(*entry)
	now := time.Now()
	if now.After(e.expiresAt) {
		c.removeLocked(el)
		c.mu.Unlock()
		return nil, false
	}
	c.order.MoveToFront(el)
	needsRefresh := c.refreshFunc != nil && e.ttl > 0 && now.After(e.expiresAt.Add(-e.ttl/5))
	value := e.value
	c.mu.Unlock()

	if needsRefresh {
		c.triggerRefresh(key)
	}
	return value, true
}

// Set stores value under key with the given TTL, evicting the least
// recently used entry if capacity is exceeded.
func (c *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &entry{key: key, value: value, expiresAt: time.Now().Add(ttl), ttl: ttl}
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: time.Now().Add(ttl), ttl: ttl})
	c.entries[key] = el

	if c.capacity > 0 {
		for len(c.entries) > c.capacity {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest)
		}
	}
}

// Delete removes key, if present.
func (c *Memory) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Clear removes every entry.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
}

// Len reports the number of entries currently cached.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Memory) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(el)
}

func (c *Memory) triggerRefresh(key string) {
	if c.refreshCtx == nil {
		return
	}
	select {
	case c.refreshCh <- key:
	case <-c.refreshCtx.Done():
	default:
	}
}

// StartRefresh starts the background refresh loop. A no-op if no
// RefreshFunc was configured.
func (c *Memory) StartRefresh(ctx context.Context) {
	if c.refreshFunc == nil {
		return
	}
	c.refreshCtx, c.refreshCancel = context.WithCancel(ctx)
	c.refreshWg.Add(1)
	go c.refreshLoop()
}

// StopRefresh stops the background refresh loop and waits for it to exit.
func (c *Memory) StopRefresh() {
	if c.refreshCancel == nil {
		return
	}
	c.refreshCancel()
	c.refreshWg.Wait()
	c.refreshCancel = nil
}

func (c *Memory) refreshLoop() {
	defer c.refreshWg.Done()

	refreshed := make(map[string]time.Time)
	for {
		select {
		case <-c.refreshCtx.Done():
			return
		case key := <-c.refreshCh:
			if last, ok := refreshed[key]; ok && time.Since(last) < c.refreshCooldown {
				continue
			}

			c.mu.Lock()
			el, exists := c.entries[key]
			c.mu.Unlock()
			if !exists {
				continue
			}
			ttl := el.Value.(*entry).ttl

			value, err := c.refreshFunc(c.refreshCtx, key)
			if err != nil {
				continue
			}

			c.mu.Lock()
			if el, exists := c.entries[key]; exists {
				el.Value = &entry{key: key, value: value, expiresAt: time.Now().Add(ttl), ttl: ttl}
			}
			c.mu.Unlock()

			refreshed[key] = time.Now()
			if len(refreshed) > 1000 {
				now := time.Now()
				for k, t := range refreshed {
					if now.Sub(t) > time.Minute {
						delete(refreshed, k)
					}
				}
			}
		}
	}
}
