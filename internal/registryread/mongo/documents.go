package mongo

import (
	"time"

	"goa.design/capsearch/internal/domain"
)

type capabilityDocument struct {
	Name        string `bson:"name"`
	Description string `bson:"description"`
}

type integrationDetailsDocument struct {
	AccessProtocol      string         `bson:"access_protocol"`
	BaseEndpoint        string         `bson:"base_endpoint"`
	AuthMethod          string         `bson:"auth_method"`
	AuthConfig          map[string]any `bson:"auth_config,omitempty"`
	RateLimitHint       string         `bson:"rate_limit_hint,omitempty"`
	ESBRouting          map[string]any `bson:"esb_routing,omitempty"`
	HealthCheckEndpoint string         `bson:"health_check_endpoint,omitempty"`
}

type agentProtocolDocument struct {
	MessageProtocol   string `bson:"message_protocol"`
	ProtocolVersion   string `bson:"protocol_version"`
	SupportsStreaming bool   `bson:"supports_streaming"`
	SupportsAsync     bool   `bson:"supports_async"`
	SupportsBatch     bool   `bson:"supports_batch"`
	ResponseStyle     string `bson:"response_style,omitempty"`
}

type serviceDocument struct {
	ID                 int64                       `bson:"_id"`
	Name               string                      `bson:"name"`
	Description        string                      `bson:"description"`
	Kind               string                      `bson:"kind"`
	Status             string                      `bson:"status"`
	Visibility         string                      `bson:"visibility"`
	Version            string                      `bson:"version,omitempty"`
	Endpoint           string                      `bson:"endpoint,omitempty"`
	DeprecationDate    *time.Time                  `bson:"deprecation_date,omitempty"`
	DeprecationNotice  string                      `bson:"deprecation_notice,omitempty"`
	SuccessCriteria    string                      `bson:"success_criteria,omitempty"`
	Capabilities       []capabilityDocument        `bson:"capabilities,omitempty"`
	Domains            []string                    `bson:"domains,omitempty"`
	IntegrationDetails *integrationDetailsDocument `bson:"integration_details,omitempty"`
	AgentProtocol      *agentProtocolDocument      `bson:"agent_protocol,omitempty"`
}

func (d serviceDocument) toDomain() domain.Service {
	svc := domain.Service{
		ID:                d.ID,
		Name:              d.Name,
		Description:       d.Description,
		Kind:              domain.ServiceKind(d.Kind),
		Status:            domain.ServiceStatus(d.Status),
		Visibility:        domain.Visibility(d.Visibility),
		Version:           d.Version,
		Endpoint:          d.Endpoint,
		DeprecationDate:   d.DeprecationDate,
		DeprecationNotice: d.DeprecationNotice,
		SuccessCriteria:   d.SuccessCriteria,
		Domains:           d.Domains,
	}
	for _, c := range d.Capabilities {
		svc.Capabilities = append(svc.Capabilities, domain.Capability{Name: c.Name, Description: c.Description})
	}
	if d.IntegrationDetails != nil {
		svc.IntegrationDetails = &domain.IntegrationDetails{
			AccessProtocol:      domain.AccessProtocol(d.IntegrationDetails.AccessProtocol),
			BaseEndpoint:        d.IntegrationDetails.BaseEndpoint,
			AuthMethod:          domain.AuthMethod(d.IntegrationDetails.AuthMethod),
			AuthConfig:          d.IntegrationDetails.AuthConfig,
			RateLimitHint:       d.IntegrationDetails.RateLimitHint,
			ESBRouting:          d.IntegrationDetails.ESBRouting,
			HealthCheckEndpoint: d.IntegrationDetails.HealthCheckEndpoint,
		}
	}
	if d.AgentProtocol != nil {
		svc.AgentProtocol = &domain.AgentProtocol{
			MessageProtocol:   d.AgentProtocol.MessageProtocol,
			ProtocolVersion:   d.AgentProtocol.ProtocolVersion,
			SupportsStreaming: d.AgentProtocol.SupportsStreaming,
			SupportsAsync:     d.AgentProtocol.SupportsAsync,
			SupportsBatch:     d.AgentProtocol.SupportsBatch,
			ResponseStyle:     domain.ResponseStyle(d.AgentProtocol.ResponseStyle),
		}
	}
	return svc
}

type exampleCallsDocument struct {
	Kind  string   `bson:"kind"` // "mapping" | "sequence" | "absent"
	Keys  []string `bson:"keys,omitempty"`
	Count int      `bson:"count,omitempty"`
}

func (d exampleCallsDocument) toDomain() domain.ExampleCalls {
	switch d.Kind {
	case "mapping":
		return domain.MappingExampleCalls(d.Keys)
	case "sequence":
		return domain.SequenceExampleCalls(d.Count)
	default:
		return domain.AbsentExampleCalls()
	}
}

type toolDocument struct {
	ID              int64                `bson:"_id"`
	ServiceID       int64                `bson:"service_id"`
	ToolName        string               `bson:"tool_name"`
	Description     string               `bson:"description"`
	InputSchema     string               `bson:"input_schema,omitempty"`
	OutputSchema    string               `bson:"output_schema,omitempty"`
	ExampleCalls    exampleCallsDocument `bson:"example_calls"`
	EndpointPattern string               `bson:"endpoint_pattern,omitempty"`
	IsActive        bool                 `bson:"is_active"`
	ToolVersion     string               `bson:"tool_version,omitempty"`
}

func (d toolDocument) toDomain() domain.Tool {
	return domain.Tool{
		ID:              d.ID,
		ServiceID:       d.ServiceID,
		ToolName:        d.ToolName,
		Description:     d.Description,
		InputSchema:     d.InputSchema,
		OutputSchema:    d.OutputSchema,
		ExampleCalls:    d.ExampleCalls.toDomain(),
		EndpointPattern: d.EndpointPattern,
		IsActive:        d.IsActive,
		ToolVersion:     d.ToolVersion,
	}
}

type attributePredicateDocument struct {
	Kind  string `bson:"kind"`
	Key   string `bson:"key"`
	Value any    `bson:"value"`
}

type policyDocument struct {
	ID            int64                        `bson:"_id"`
	ServiceID     int64                        `bson:"service_id"`
	RequiredRoles []string                     `bson:"required_roles,omitempty"`
	Attributes    []attributePredicateDocument `bson:"attributes,omitempty"`
}

func (d policyDocument) toDomain() domain.AccessPolicy {
	p := domain.AccessPolicy{ID: d.ID, RequiredRoles: d.RequiredRoles}
	for _, a := range d.Attributes {
		p.Attributes = append(p.Attributes, domain.AttributePredicate{
			Kind:  domain.PredicateKind(a.Kind),
			Key:   a.Key,
			Value: a.Value,
		})
	}
	return p
}
