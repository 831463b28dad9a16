// Package registryread implements the read-side projection (C3) used both
// to build vector indexes and to enrich search results. It never mutates
// the registry; mutations arrive from the admin surface and are consumed by
// the invalidation controller.
package registryread

import (
	"context"
	"errors"

	"goa.design/capsearch/internal/domain"
)

// ErrNotFound is returned when a requested service or tool does not exist.
var ErrNotFound = errors.New("registryread: not found")

// Store is the read-only projection contract. A single search request must
// observe a consistent snapshot of the registry for all of its enrichment
// fetches (spec.md §4.3); implementations that wrap a transactional store
// should open one read transaction per call that needs it.
type Store interface {
	// ListActiveServicesWithRelations returns every active service with its
	// capabilities, domains, integration details and agent protocol
	// populated, for index construction.
	ListActiveServicesWithRelations(ctx context.Context) ([]domain.ServiceBundle, error)
	// ListActiveToolsWithService returns every tool whose owning service is
	// active and which is itself active, each paired with its owning
	// service bundle, for index construction.
	ListActiveToolsWithService(ctx context.Context) ([]domain.ToolBundle, error)
	// GetServiceBundle resolves a single service plus its enrichment
	// relations in one read.
	GetServiceBundle(ctx context.Context, id int64) (domain.ServiceBundle, error)
	// GetToolBundle resolves a single tool plus its owning service bundle.
	GetToolBundle(ctx context.Context, id int64) (domain.ToolBundle, error)
	// GetServiceByName resolves a service bundle by its unique name.
	GetServiceByName(ctx context.Context, name string) (domain.ServiceBundle, error)
}
