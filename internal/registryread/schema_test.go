package registryread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/capsearch/internal/domain"
)

func TestValidateToolSchemasAcceptsAbsentSchemas(t *testing.T) {
	err := ValidateToolSchemas(domain.Tool{ToolName: "no_schema"})
	assert.NoError(t, err)
}

func TestValidateToolSchemasAcceptsWellFormedSchema(t *testing.T) {
	err := ValidateToolSchemas(domain.Tool{
		ToolName:     "buy_shoes",
		InputSchema:  `{"type": "object", "properties": {"size": {"type": "number"}}, "required": ["size"]}`,
		OutputSchema: `{"type": "object", "properties": {"order_id": {"type": "string"}}}`,
	})
	assert.NoError(t, err)
}

func TestValidateToolSchemasRejectsMalformedJSON(t *testing.T) {
	err := ValidateToolSchemas(domain.Tool{ToolName: "broken", InputSchema: `{not json`})
	require.Error(t, err)
}

func TestValidateToolSchemasRejectsInvalidSchemaDocument(t *testing.T) {
	err := ValidateToolSchemas(domain.Tool{ToolName: "broken", InputSchema: `{"type": "not-a-real-type"}`})
	require.Error(t, err)
}

func TestPutToolRejectsMalformedSchema(t *testing.T) {
	store := NewMemoryStore()
	err := store.PutTool(domain.Tool{ID: 1, ServiceID: 1, ToolName: "broken", InputSchema: `{not json`})
	require.Error(t, err)
}

func TestPutToolAcceptsValidSchema(t *testing.T) {
	store := NewMemoryStore()
	err := store.PutTool(domain.Tool{
		ID:          1,
		ServiceID:   1,
		ToolName:    "ok",
		IsActive:    true,
		InputSchema: `{"type": "object"}`,
	})
	require.NoError(t, err)
}
