package registryread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/capsearch/internal/domain"
)

func TestMemoryStoreListActiveServicesExcludesInactiveAndDeprecated(t *testing.T) {
	store := NewMemoryStore()
	store.PutService(domain.Service{ID: 1, Name: "Active", Status: domain.ServiceStatusActive})
	store.PutService(domain.Service{ID: 2, Name: "Inactive", Status: domain.ServiceStatusInactive})
	store.PutService(domain.Service{ID: 3, Name: "Deprecated", Status: domain.ServiceStatusDeprecated})

	bundles, err := store.ListActiveServicesWithRelations(context.Background())
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, int64(1), bundles[0].Service.ID)
}

func TestMemoryStoreListActiveToolsRequiresActiveService(t *testing.T) {
	store := NewMemoryStore()
	store.PutService(domain.Service{ID: 1, Name: "Svc", Status: domain.ServiceStatusInactive})
	store.PutTool(domain.Tool{ID: 10, ServiceID: 1, ToolName: "t", IsActive: true})

	tools, err := store.ListActiveToolsWithService(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestMemoryStoreGetServiceBundleIncludesPolicies(t *testing.T) {
	store := NewMemoryStore()
	store.PutService(domain.Service{ID: 1, Name: "Svc", Status: domain.ServiceStatusActive})
	store.PutPolicies(1, []domain.AccessPolicy{{ID: 99, RequiredRoles: []string{"admin"}}})

	bundle, err := store.GetServiceBundle(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, bundle.Policies, 1)
	assert.Equal(t, int64(99), bundle.Policies[0].ID)
}

func TestMemoryStoreGetToolBundleNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetToolBundle(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetServiceByName(t *testing.T) {
	store := NewMemoryStore()
	store.PutService(domain.Service{ID: 5, Name: "ShoesAgent", Status: domain.ServiceStatusActive})
	bundle, err := store.GetServiceByName(context.Background(), "ShoesAgent")
	require.NoError(t, err)
	assert.Equal(t, int64(5), bundle.Service.ID)
}
