package registryread

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/capsearch/internal/domain"
)

// ValidateToolSchemas checks that a tool's advertised input and output
// schemas, when present, are well-formed JSON Schema documents. A malformed
// schema would otherwise surface only when a caller tries to interpret it,
// far from where the tool was admitted into the read model — the same
// admission-time check the reference registry runs before accepting a
// toolset (registry/service.go's validateToolSchemas).
func ValidateToolSchemas(tool domain.Tool) error {
	if err := compileSchema(tool.InputSchema); err != nil {
		return fmt.Errorf("registryread: tool %q input schema: %w", tool.ToolName, err)
	}
	if err := compileSchema(tool.OutputSchema); err != nil {
		return fmt.Errorf("registryread: tool %q output schema: %w", tool.ToolName, err)
	}
	return nil
}

// compileSchema treats an absent schema as valid; InputSchema/OutputSchema
// are optional on domain.Tool.
func compileSchema(raw string) error {
	if raw == "" {
		return nil
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return nil
}
