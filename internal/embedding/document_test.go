package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/capsearch/internal/domain"
)

func TestToolDocumentMappingExampleCallsEmitsKeys(t *testing.T) {
	tool := domain.Tool{
		ToolName:     "product_search",
		Description:  "search the catalog",
		ExampleCalls: domain.MappingExampleCalls([]string{"by_sku", "by_keyword"}),
	}
	doc := ToolDocument(tool, "ShoesAgent")
	assert.True(t, strings.Contains(doc, "by_sku"))
	assert.True(t, strings.Contains(doc, "by_keyword"))
}

func TestToolDocumentSequenceExampleCallsEmitsCount(t *testing.T) {
	tool := domain.Tool{
		ToolName:     "product_search",
		Description:  "search the catalog",
		ExampleCalls: domain.SequenceExampleCalls(3),
	}
	doc := ToolDocument(tool, "ShoesAgent")
	assert.True(t, strings.Contains(doc, "3 example(s)"))
}

func TestToolDocumentAbsentExampleCallsAddsNothing(t *testing.T) {
	withCalls := ToolDocument(domain.Tool{
		ToolName:     "x",
		Description:  "y",
		ExampleCalls: domain.MappingExampleCalls([]string{"z"}),
	}, "svc")
	withoutCalls := ToolDocument(domain.Tool{
		ToolName:     "x",
		Description:  "y",
		ExampleCalls: domain.AbsentExampleCalls(),
	}, "svc")
	assert.NotEqual(t, withCalls, withoutCalls)
	assert.False(t, strings.Contains(withoutCalls, "z"))
}

func TestServiceDocumentIncludesCapabilitiesAndDomains(t *testing.T) {
	svc := domain.Service{
		Name:        "ShoesAgent",
		Description: "finds shoes",
		Capabilities: []domain.Capability{
			{Name: "search", Description: "search for shoes by attribute"},
		},
		Domains: []string{"retail", "commerce"},
	}
	doc := ServiceDocument(svc)
	assert.True(t, strings.Contains(doc, "shoesagent"))
	assert.True(t, strings.Contains(doc, "search for shoes by attribute"))
	assert.True(t, strings.Contains(doc, "retail"))
}

func TestServiceDocumentWithNoCapabilitiesOrDomainsStillIndexesNameAndDescription(t *testing.T) {
	svc := domain.Service{Name: "Bare", Description: "a bare service"}
	doc := ServiceDocument(svc)
	assert.True(t, strings.Contains(doc, "bare"))
	assert.True(t, strings.Contains(doc, "a bare service"))
}
