package searchpipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/capsearch/internal/domain"
)

func fullResult() *Result {
	return &Result{
		Service: ServiceView{
			ID: 1, Name: "ShoesAgent", Description: strings.Repeat("x", 200),
			Capabilities: []domain.Capability{{Name: "search", Description: "find shoes"}},
		},
		RecommendedTool: &ToolView{
			ID: 10, ToolName: "product_search", Description: "desc",
			InputSchema: "{}", OutputSchema: "{}",
		},
		IntegrationDetails: &domain.IntegrationDetails{
			BaseEndpoint: "https://svc/shoes", AuthMethod: domain.AuthMethodBearer,
			AuthConfig: map[string]any{"scope": "shoes"}, RateLimitHint: "60/min",
		},
		AgentProtocol: &domain.AgentProtocol{MessageProtocol: "mcp"},
	}
}

func TestShapeResultFullKeepsEverything(t *testing.T) {
	r := fullResult()
	ShapeResult(r, VerbosityFull, true)
	assert.NotEmpty(t, r.RecommendedTool.InputSchema)
	assert.NotNil(t, r.IntegrationDetails)
	assert.NotNil(t, r.AgentProtocol)
}

func TestShapeResultCompactDropsSchemas(t *testing.T) {
	r := fullResult()
	ShapeResult(r, VerbosityCompact, true)
	assert.Empty(t, r.RecommendedTool.InputSchema)
	assert.Empty(t, r.RecommendedTool.OutputSchema)
	assert.NotNil(t, r.IntegrationDetails)
}

func TestShapeResultMinimalDropsCapabilitiesAndTruncatesDescription(t *testing.T) {
	r := fullResult()
	ShapeResult(r, VerbosityMinimal, false)
	assert.Nil(t, r.Service.Capabilities)
	assert.Empty(t, r.Service.Description)
	assert.LessOrEqual(t, len(r.Service.ShortDescription), 140)
	assert.Nil(t, r.IntegrationDetails)
	assert.Nil(t, r.AgentProtocol)
}

func TestShapeResultMinimalWithOrchestrationKeepsOnlyBaseEndpointAndAuthMethod(t *testing.T) {
	r := fullResult()
	ShapeResult(r, VerbosityMinimal, true)
	assert.NotNil(t, r.IntegrationDetails)
	assert.Equal(t, "https://svc/shoes", r.IntegrationDetails.BaseEndpoint)
	assert.Equal(t, domain.AuthMethodBearer, r.IntegrationDetails.AuthMethod)
	assert.Nil(t, r.IntegrationDetails.AuthConfig)
	assert.Empty(t, r.IntegrationDetails.RateLimitHint)
	assert.Nil(t, r.AgentProtocol)
}

func TestShapeResultCompactWithoutOrchestrationDropsIntegrationDetails(t *testing.T) {
	r := fullResult()
	ShapeResult(r, VerbosityCompact, false)
	assert.Nil(t, r.IntegrationDetails)
	assert.Nil(t, r.AgentProtocol)
}
