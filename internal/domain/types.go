// Package domain holds the value types shared by every component: the
// registry's read-side entities, caller identity, and the append-only
// feedback records. Nothing here talks to storage or the network.
package domain

import "time"

// ServiceKind enumerates the recognized shapes a registered service can take.
type ServiceKind string

const (
	ServiceKindAPI             ServiceKind = "api"
	ServiceKindInternalAgent   ServiceKind = "internal_agent"
	ServiceKindExternalAgent   ServiceKind = "external_agent"
	ServiceKindESBEndpoint     ServiceKind = "esb_endpoint"
	ServiceKindLegacy          ServiceKind = "legacy"
	ServiceKindMicroservice    ServiceKind = "microservice"
)

// ServiceStatus is the lifecycle state of a service.
type ServiceStatus string

const (
	ServiceStatusActive     ServiceStatus = "active"
	ServiceStatusInactive   ServiceStatus = "inactive"
	ServiceStatusDeprecated ServiceStatus = "deprecated"
)

// Visibility gates who may discover a service before policy predicates run.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityOrgWide    Visibility = "org_wide"
	VisibilityInternal   Visibility = "internal"
	VisibilityRestricted Visibility = "restricted"
)

// RetryPolicy describes an optional retry contract advertised by a service.
type RetryPolicy struct {
	MaxAttempts int
	BackoffMS   int
}

// Service is the registry's canonical record for a discoverable capability.
// The embedded slices (Capabilities, Domains) are populated on bundle reads;
// a bare Service as stored by a read model carries only scalar fields.
type Service struct {
	ID                 int64
	Name               string
	Description        string
	Kind               ServiceKind
	Status             ServiceStatus
	Visibility         Visibility
	Version            string
	Endpoint           string
	DeprecationDate    *time.Time
	DeprecationNotice  string
	Timeout            *time.Duration
	Retry              *RetryPolicy
	SuccessCriteria    string
	Capabilities       []Capability
	Domains            []string
	IntegrationDetails *IntegrationDetails
	AgentProtocol      *AgentProtocol
}

// Capability is a single named action a service advertises. Its description
// contributes text to the owning service's embedding document.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is a single invocable operation belonging to one service.
type Tool struct {
	ID              int64
	ServiceID       int64
	ToolName        string
	Description     string
	InputSchema     string // raw JSON Schema document
	OutputSchema    string // raw JSON Schema document
	ExampleCalls    ExampleCalls
	EndpointPattern string
	IsActive        bool
	ToolVersion     string
}

// AccessProtocol names the wire protocol a service's integration uses.
type AccessProtocol string

const (
	AccessProtocolHTTP AccessProtocol = "http"
	AccessProtocolGRPC AccessProtocol = "grpc"
	AccessProtocolESB  AccessProtocol = "esb"
)

// AuthMethod names how a caller authenticates against the integration.
type AuthMethod string

const (
	AuthMethodNone   AuthMethod = "none"
	AuthMethodBearer AuthMethod = "bearer"
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodMTLS   AuthMethod = "mtls"
)

// IntegrationDetails enriches a result; it never participates in similarity.
type IntegrationDetails struct {
	AccessProtocol      AccessProtocol `json:"access_protocol,omitempty"`
	BaseEndpoint        string         `json:"base_endpoint,omitempty"`
	AuthMethod          AuthMethod     `json:"auth_method,omitempty"`
	AuthConfig          map[string]any `json:"auth_config,omitempty"`
	RateLimitHint       string         `json:"rate_limit_hint,omitempty"`
	ESBRouting          map[string]any `json:"esb_routing,omitempty"`
	HealthCheckEndpoint string         `json:"health_check_endpoint,omitempty"`
}

// ResponseStyle names how an agent-protocol service returns results.
type ResponseStyle string

const (
	ResponseStyleSingleShot ResponseStyle = "single_shot"
	ResponseStyleStreaming  ResponseStyle = "streaming"
)

// AgentProtocol enriches agent-kind services; absent for plain APIs.
type AgentProtocol struct {
	MessageProtocol   string        `json:"message_protocol,omitempty"`
	ProtocolVersion   string        `json:"protocol_version,omitempty"`
	SupportsStreaming bool          `json:"supports_streaming"`
	SupportsAsync     bool          `json:"supports_async"`
	SupportsBatch     bool          `json:"supports_batch"`
	ResponseStyle     ResponseStyle `json:"response_style,omitempty"`
}

// PredicateKind names the operator a single access-policy predicate applies.
type PredicateKind string

const (
	PredicateEquals   PredicateKind = "equals"
	PredicateIn       PredicateKind = "in"
	PredicateContains PredicateKind = "contains"
	PredicateAll      PredicateKind = "all"
	PredicateAny      PredicateKind = "any"
)

// AttributePredicate constrains one caller attribute.
type AttributePredicate struct {
	Kind  PredicateKind
	Key   string
	Value any // scalar or []any depending on Kind
}

// AccessPolicy is one policy attached to a service. A role-based policy sets
// RequiredRoles; an attribute-based policy sets Attributes. A service with
// multiple policies attached must pass all of them (see policy package).
type AccessPolicy struct {
	ID            int64
	RequiredRoles []string
	Attributes    []AttributePredicate
}

// User is a caller identity resolved from a bearer token.
type User struct {
	ID         string
	Roles      []string
	Attributes map[string]any
	Active     bool
	Scopes     []string
}

// APIKey is a caller identity resolved by hash lookup.
type APIKey struct {
	ID           string
	HashedSecret string
	OwnerUserID  string
	Roles        []string
	Attributes   map[string]any
	Scopes       []string
	QuotaOverride *int
	ExpiresAt    *time.Time
	Active       bool
}

// Identity is the resolved caller attached to a request after C8 admits it.
type Identity struct {
	ID         string
	Roles      []string
	Attributes map[string]any
	Scopes     []string
	Active     bool
	Anonymous  bool
}

// HasRole reports whether the identity's role set contains role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope reports whether the identity's scope set contains scope.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ServiceBundle is a value object assembled from a single read: the service
// plus every enrichment relation needed to shape a result. Never a lazy
// reference — see Design Notes on cyclic registry graphs.
type ServiceBundle struct {
	Service            Service
	IntegrationDetails *IntegrationDetails
	AgentProtocol      *AgentProtocol
	Policies           []AccessPolicy
}

// ToolBundle is a value object: the tool plus its owning service's bundle.
type ToolBundle struct {
	Tool    Tool
	Service ServiceBundle
}

// SearchQueryRecord is an append-only record of one executed search.
type SearchQueryRecord struct {
	SearchID        string
	QueryText       string
	NormalizedHash  string
	CallerID        string
	Mode            string
	Verbosity       string
	ResultIDs       []string // ordered ids returned, "service:<id>" or "tool:<id>"
	ResultCount     int
	ResponseTimeMS  int64
	Timestamp       time.Time
}

// UserSelectionRecord is an append-only record of a caller selecting a
// result from a prior search.
type UserSelectionRecord struct {
	SearchID     string
	Position     int
	SelectedID   string // "service:<id>" or "tool:<id>", matching ResultIDs
	CallerID     string
	Timestamp    time.Time
	Satisfaction *bool
}
