package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/capsearch/internal/domain"
)

func bundleWithVisibility(v domain.Visibility) domain.ServiceBundle {
	return domain.ServiceBundle{Service: domain.Service{Visibility: v, Status: domain.ServiceStatusActive}}
}

func TestAllowPublicServiceAllowsAnonymous(t *testing.T) {
	e := New("")
	anon := domain.Identity{Anonymous: true}
	assert.True(t, e.Allow(anon, bundleWithVisibility(domain.VisibilityPublic)))
}

func TestAllowOrgWideRequiresIdentity(t *testing.T) {
	e := New("")
	anon := domain.Identity{Anonymous: true}
	known := domain.Identity{ID: "u1"}
	assert.False(t, e.Allow(anon, bundleWithVisibility(domain.VisibilityOrgWide)))
	assert.True(t, e.Allow(known, bundleWithVisibility(domain.VisibilityOrgWide)))
}

func TestAllowRoleBasedPolicyRequiresAllRoles(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{RequiredRoles: []string{"ops", "admin"}},
		},
	}
	opsOnly := domain.Identity{ID: "u1", Roles: []string{"ops"}}
	opsAndAdmin := domain.Identity{ID: "u2", Roles: []string{"ops", "admin"}}
	assert.False(t, e.Allow(opsOnly, bundle))
	assert.True(t, e.Allow(opsAndAdmin, bundle))
}

func TestAllowAttributePredicateEquals(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateEquals, Key: "region", Value: "us"}}},
		},
	}
	us := domain.Identity{ID: "u1", Attributes: map[string]any{"region": "us"}}
	eu := domain.Identity{ID: "u2", Attributes: map[string]any{"region": "eu"}}
	assert.True(t, e.Allow(us, bundle))
	assert.False(t, e.Allow(eu, bundle))
}

func TestAllowAttributePredicateIn(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateIn, Key: "tier", Value: []any{"gold", "platinum"}}}},
		},
	}
	gold := domain.Identity{ID: "u1", Attributes: map[string]any{"tier": "gold"}}
	bronze := domain.Identity{ID: "u2", Attributes: map[string]any{"tier": "bronze"}}
	assert.True(t, e.Allow(gold, bundle))
	assert.False(t, e.Allow(bronze, bundle))
}

func TestAllowAttributePredicateContains(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateContains, Key: "teams", Value: "payments"}}},
		},
	}
	member := domain.Identity{ID: "u1", Attributes: map[string]any{"teams": []any{"payments", "infra"}}}
	other := domain.Identity{ID: "u2", Attributes: map[string]any{"teams": []any{"infra"}}}
	assert.True(t, e.Allow(member, bundle))
	assert.False(t, e.Allow(other, bundle))
}

func TestAllowAttributePredicateAllAndAny(t *testing.T) {
	e := New("")
	allBundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateAll, Key: "certs", Value: []any{"soc2", "hipaa"}}}},
		},
	}
	anyBundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateAny, Key: "certs", Value: []any{"soc2", "hipaa"}}}},
		},
	}
	both := domain.Identity{ID: "u1", Attributes: map[string]any{"certs": []any{"soc2", "hipaa"}}}
	one := domain.Identity{ID: "u2", Attributes: map[string]any{"certs": []any{"soc2"}}}
	none := domain.Identity{ID: "u3", Attributes: map[string]any{"certs": []any{"pci"}}}

	assert.True(t, e.Allow(both, allBundle))
	assert.False(t, e.Allow(one, allBundle))

	assert.True(t, e.Allow(one, anyBundle))
	assert.False(t, e.Allow(none, anyBundle))
}

func TestAllowMissingAttributeFailsPredicate(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityInternal, Status: domain.ServiceStatusActive},
		Policies: []domain.AccessPolicy{
			{Attributes: []domain.AttributePredicate{{Kind: domain.PredicateEquals, Key: "region", Value: "us"}}},
		},
	}
	missing := domain.Identity{ID: "u1"}
	assert.False(t, e.Allow(missing, bundle))
}

func TestAllowDeprecatedServiceRequiresScope(t *testing.T) {
	e := New("")
	bundle := domain.ServiceBundle{
		Service: domain.Service{Visibility: domain.VisibilityPublic, Status: domain.ServiceStatusDeprecated},
	}
	plain := domain.Identity{ID: "u1"}
	withScope := domain.Identity{ID: "u2", Scopes: []string{IncludeDeprecatedScope}}
	assert.False(t, e.Allow(plain, bundle))
	assert.True(t, e.Allow(withScope, bundle))
}

func TestAllowRestrictedWithNoPoliciesFallsThroughToAllow(t *testing.T) {
	e := New("")
	bundle := bundleWithVisibility(domain.VisibilityRestricted)
	caller := domain.Identity{ID: "u1"}
	// Visibility gate only defers to policies; a restricted service with no
	// attached policy has nothing left to deny on, so access is allowed.
	// Operators relying on "restricted" for gating must attach a policy.
	assert.True(t, e.Allow(caller, bundle))
}
