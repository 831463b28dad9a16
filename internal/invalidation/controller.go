package invalidation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"goa.design/capsearch/internal/cache"
	"goa.design/capsearch/internal/domain"
	"goa.design/capsearch/internal/embedding"
	"goa.design/capsearch/internal/registryread"
	"goa.design/capsearch/internal/telemetry"
	"goa.design/capsearch/internal/vectorindex"
)

// RebuildStatus is surfaced via /search/status per spec.md §7: in-flight
// requests are never blocked by a failed rebuild, but operators need
// visibility into staleness.
type RebuildStatus struct {
	IndexStale      bool
	LastRebuildErr  string
	LastRebuildTime time.Time
}

// Controller is C9: it consumes registry mutation events, keeps the
// services and tools vector indexes and the response cache in sync with
// the registry, and performs full rebuilds on startup or corruption.
// Concurrency is grounded on the reference registry's StreamManager and
// HealthTracker lifecycle style: a single consumer goroutine per
// Controller processes events off one channel, so the services and tools
// indexes already have a single writer by construction; servicesMu and
// toolsMu additionally serialize a Rebuild against any handler goroutine
// invoked directly (e.g. from an admin command), matching spec.md §4.9
// "at most one write/rebuild is in flight per index."
type Controller struct {
	store    registryread.Store
	embedder embedding.Provider

	servicesMu    sync.Mutex
	servicesIndex atomic.Pointer[vectorindex.Flat]
	toolsMu       sync.Mutex
	toolsIndex    atomic.Pointer[vectorindex.Flat]

	responseCache  *cache.ResponseCache
	embeddingCache *cache.EmbeddingCache

	snapshotDir string
	telemetry   telemetry.Bundle

	statusMu sync.RWMutex
	status   RebuildStatus
}

// Config bundles the collaborators a Controller needs.
type Config struct {
	Store          registryread.Store
	Embedder       embedding.Provider
	ResponseCache  *cache.ResponseCache
	EmbeddingCache *cache.EmbeddingCache
	SnapshotDir    string
	Telemetry      telemetry.Bundle
}

// NewController constructs a Controller with empty indexes; call Rebuild
// or LoadSnapshots before serving traffic.
func NewController(cfg Config) *Controller {
	c := &Controller{
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		responseCache:  cfg.ResponseCache,
		embeddingCache: cfg.EmbeddingCache,
		snapshotDir:    cfg.SnapshotDir,
		telemetry:      cfg.Telemetry,
	}
	emptyServices := vectorindex.NewFlat(cfg.Embedder.Dimension())
	emptyTools := vectorindex.NewFlat(cfg.Embedder.Dimension())
	c.servicesIndex.Store(emptyServices)
	c.toolsIndex.Store(emptyTools)
	return c
}

// ServicesIndex returns the live services index for read-only search use.
func (c *Controller) ServicesIndex() *vectorindex.Flat { return c.servicesIndex.Load() }

// ToolsIndex returns the live tools index for read-only search use.
func (c *Controller) ToolsIndex() *vectorindex.Flat { return c.toolsIndex.Load() }

// Status returns the current rebuild/staleness status for /search/status.
func (c *Controller) Status() RebuildStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Controller) setStatus(s RebuildStatus) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// Run consumes events from source until ctx is canceled, applying each one
// as it arrives. Errors from individual event handlers are logged and do
// not stop the loop — a single bad event must not wedge the controller.
func (c *Controller) Run(ctx context.Context, source Source) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-source.Events():
			if !ok {
				return
			}
			if err := c.handleEvent(ctx, e); err != nil {
				c.telemetry.Logger.Error(ctx, "invalidation: handle event failed", "kind", string(e.Kind), "error", err.Error())
			}
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, e Event) error {
	switch e.Kind {
	case EventServiceCreated, EventServiceUpdated:
		return c.reembedService(ctx, e.ServiceID)
	case EventServiceDeleted:
		return c.removeService(ctx, e.ServiceID)
	case EventToolCreated, EventToolUpdated:
		return c.reembedTool(ctx, e.ServiceID, e.ToolID)
	case EventToolDeleted:
		return c.removeTool(ctx, e.ToolID)
	case EventAccessPolicyChanged:
		return c.invalidatePolicyCache(ctx, e.ServiceID)
	default:
		return nil
	}
}

func (c *Controller) reembedService(ctx context.Context, serviceID int64) error {
	bundle, err := c.store.GetServiceBundle(ctx, serviceID)
	if err != nil {
		return err
	}
	if bundle.Service.Status != domain.ServiceStatusActive {
		return c.removeService(ctx, serviceID)
	}
	doc := embedding.ServiceDocument(bundle.Service)
	vec, err := c.embedder.Embed(ctx, embedding.Normalize(doc))
	if err != nil {
		return err
	}
	c.servicesMu.Lock()
	err = c.servicesIndex.Load().Update(ctx, serviceID, vec)
	if errors.Is(err, vectorindex.ErrNotFound) {
		err = c.servicesIndex.Load().Add(ctx, serviceID, vec)
	}
	c.servicesMu.Unlock()
	if err != nil {
		return err
	}
	c.invalidateResponseCache(ctx)
	return nil
}

func (c *Controller) removeService(ctx context.Context, serviceID int64) error {
	c.servicesMu.Lock()
	err := c.servicesIndex.Load().Remove(ctx, serviceID)
	c.servicesMu.Unlock()
	if err != nil && !errors.Is(err, vectorindex.ErrNotFound) {
		return err
	}
	c.invalidateResponseCache(ctx)
	return nil
}

func (c *Controller) reembedTool(ctx context.Context, serviceID, toolID int64) error {
	bundle, err := c.store.GetToolBundle(ctx, toolID)
	if err != nil {
		return err
	}
	doc := embedding.ToolDocument(bundle.Tool, bundle.Service.Service.Name)
	vec, err := c.embedder.Embed(ctx, embedding.Normalize(doc))
	if err != nil {
		return err
	}
	c.toolsMu.Lock()
	err = c.toolsIndex.Load().Update(ctx, toolID, vec)
	if errors.Is(err, vectorindex.ErrNotFound) {
		err = c.toolsIndex.Load().Add(ctx, toolID, vec)
	}
	c.toolsMu.Unlock()
	if err != nil {
		return err
	}
	c.invalidateResponseCache(ctx)
	return nil
}

func (c *Controller) removeTool(ctx context.Context, toolID int64) error {
	c.toolsMu.Lock()
	err := c.toolsIndex.Load().Remove(ctx, toolID)
	c.toolsMu.Unlock()
	if err != nil && !errors.Is(err, vectorindex.ErrNotFound) {
		return err
	}
	c.invalidateResponseCache(ctx)
	return nil
}

func (c *Controller) invalidatePolicyCache(ctx context.Context, _ int64) error {
	c.invalidateResponseCache(ctx)
	return nil
}

func (c *Controller) invalidateResponseCache(ctx context.Context) {
	if c.responseCache != nil {
		c.responseCache.InvalidateAll(ctx)
	}
}

// Rebuild streams active services and tools from the registry, re-embeds
// all of them, constructs fresh indexes in a staging area, and atomically
// replaces the live indexes once both builds succeed — readers observe
// either the old or the new index, never a partial one, per spec.md §4.9.
// A persisted snapshot is written on success.
func (c *Controller) Rebuild(ctx context.Context, embeddingModel string) error {
	services, err := c.store.ListActiveServicesWithRelations(ctx)
	if err != nil {
		return err
	}
	tools, err := c.store.ListActiveToolsWithService(ctx)
	if err != nil {
		return err
	}

	stagingServices := vectorindex.NewFlat(c.embedder.Dimension())
	for _, bundle := range services {
		doc := embedding.ServiceDocument(bundle.Service)
		vec, err := c.embedder.Embed(ctx, embedding.Normalize(doc))
		if err != nil {
			return errors.Join(err, errors.New("rebuild: embed service failed"))
		}
		if err := stagingServices.Add(ctx, bundle.Service.ID, vec); err != nil {
			return errors.Join(err, errors.New("rebuild: add service vector failed"))
		}
	}

	stagingTools := vectorindex.NewFlat(c.embedder.Dimension())
	for _, bundle := range tools {
		doc := embedding.ToolDocument(bundle.Tool, bundle.Service.Service.Name)
		vec, err := c.embedder.Embed(ctx, embedding.Normalize(doc))
		if err != nil {
			return errors.Join(err, errors.New("rebuild: embed tool failed"))
		}
		if err := stagingTools.Add(ctx, bundle.Tool.ID, vec); err != nil {
			return errors.Join(err, errors.New("rebuild: add tool vector failed"))
		}
	}

	c.servicesMu.Lock()
	c.servicesIndex.Store(stagingServices)
	c.servicesMu.Unlock()

	c.toolsMu.Lock()
	c.toolsIndex.Store(stagingTools)
	c.toolsMu.Unlock()

	c.invalidateResponseCache(ctx)

	var persistErr error
	if c.snapshotDir != "" {
		if err := vectorindex.Snapshot(stagingServices, c.snapshotDir+"/services", embeddingModel); err != nil {
			persistErr = errors.Join(persistErr, err)
		}
		if err := vectorindex.Snapshot(stagingTools, c.snapshotDir+"/tools", embeddingModel); err != nil {
			persistErr = errors.Join(persistErr, err)
		}
	}

	status := RebuildStatus{IndexStale: persistErr != nil, LastRebuildTime: time.Now()}
	if persistErr != nil {
		status.LastRebuildErr = persistErr.Error()
	}
	c.setStatus(status)
	return persistErr
}

// LoadSnapshots loads the services and tools indexes from disk, falling
// back to a full Rebuild when a snapshot is absent, model-mismatched, or
// checksum-mismatched, per spec.md §4.9's full-rebuild triggers.
func (c *Controller) LoadSnapshots(ctx context.Context, embeddingModel string) error {
	if c.snapshotDir == "" {
		return c.Rebuild(ctx, embeddingModel)
	}
	services, _, err := vectorindex.Load(c.snapshotDir+"/services", c.embedder.Dimension(), embeddingModel)
	if err != nil {
		return c.Rebuild(ctx, embeddingModel)
	}
	tools, _, err := vectorindex.Load(c.snapshotDir+"/tools", c.embedder.Dimension(), embeddingModel)
	if err != nil {
		return c.Rebuild(ctx, embeddingModel)
	}
	c.servicesIndex.Store(services)
	c.toolsIndex.Store(tools)
	c.setStatus(RebuildStatus{LastRebuildTime: time.Now()})
	return nil
}
