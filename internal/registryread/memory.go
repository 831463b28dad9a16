package registryread

import (
	"context"
	"sort"
	"sync"

	"goa.design/capsearch/internal/domain"
)

// MemoryStore is an in-memory Store implementation used for development,
// tests, and single-node deployments. Safe for concurrent use. Writers are
// admin bootstrap code and tests, via the Put*/Delete*
// methods below — not part of the Store interface, since regular readers
// never mutate.
type MemoryStore struct {
	mu       sync.RWMutex
	services map[int64]domain.Service
	tools    map[int64]domain.Tool
	policies map[int64][]domain.AccessPolicy // by service id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services: make(map[int64]domain.Service),
		tools:    make(map[int64]domain.Tool),
		policies: make(map[int64][]domain.AccessPolicy),
	}
}

// PutService inserts or replaces a service record.
func (m *MemoryStore) PutService(svc domain.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[svc.ID] = svc
}

// PutTool inserts or replaces a tool record. It rejects a tool whose input
// or output schema, if present, is not a well-formed JSON Schema document.
func (m *MemoryStore) PutTool(tool domain.Tool) error {
	if err := ValidateToolSchemas(tool); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[tool.ID] = tool
	return nil
}

// PutPolicies replaces the access policies attached to a service.
func (m *MemoryStore) PutPolicies(serviceID int64, policies []domain.AccessPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[serviceID] = policies
}

// DeleteService removes a service and its attached policies.
func (m *MemoryStore) DeleteService(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.services, id)
	delete(m.policies, id)
}

// DeleteTool removes a tool.
func (m *MemoryStore) DeleteTool(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tools, id)
}

func (m *MemoryStore) bundleLocked(svc domain.Service) domain.ServiceBundle {
	return domain.ServiceBundle{
		Service:            svc,
		IntegrationDetails: svc.IntegrationDetails,
		AgentProtocol:      svc.AgentProtocol,
		Policies:           m.policies[svc.ID],
	}
}

func (m *MemoryStore) ListActiveServicesWithRelations(ctx context.Context) ([]domain.ServiceBundle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ServiceBundle, 0, len(m.services))
	for _, svc := range m.services {
		if svc.Status != domain.ServiceStatusActive {
			continue
		}
		out = append(out, m.bundleLocked(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service.ID < out[j].Service.ID })
	return out, nil
}

func (m *MemoryStore) ListActiveToolsWithService(ctx context.Context) ([]domain.ToolBundle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ToolBundle, 0, len(m.tools))
	for _, tool := range m.tools {
		if !tool.IsActive {
			continue
		}
		svc, ok := m.services[tool.ServiceID]
		if !ok || svc.Status != domain.ServiceStatusActive {
			continue
		}
		out = append(out, domain.ToolBundle{Tool: tool, Service: m.bundleLocked(svc)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool.ID < out[j].Tool.ID })
	return out, nil
}

func (m *MemoryStore) GetServiceBundle(ctx context.Context, id int64) (domain.ServiceBundle, error) {
	select {
	case <-ctx.Done():
		return domain.ServiceBundle{}, ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[id]
	if !ok {
		return domain.ServiceBundle{}, ErrNotFound
	}
	return m.bundleLocked(svc), nil
}

func (m *MemoryStore) GetToolBundle(ctx context.Context, id int64) (domain.ToolBundle, error) {
	select {
	case <-ctx.Done():
		return domain.ToolBundle{}, ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tool, ok := m.tools[id]
	if !ok {
		return domain.ToolBundle{}, ErrNotFound
	}
	svc, ok := m.services[tool.ServiceID]
	if !ok {
		return domain.ToolBundle{}, ErrNotFound
	}
	return domain.ToolBundle{Tool: tool, Service: m.bundleLocked(svc)}, nil
}

func (m *MemoryStore) GetServiceByName(ctx context.Context, name string) (domain.ServiceBundle, error) {
	select {
	case <-ctx.Done():
		return domain.ServiceBundle{}, ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, svc := range m.services {
		if svc.Name == name {
			return m.bundleLocked(svc), nil
		}
	}
	return domain.ServiceBundle{}, ErrNotFound
}
