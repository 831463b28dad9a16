package embedding

import (
	"fmt"
	"strings"

	"goa.design/capsearch/internal/domain"
)

// ServiceDocument builds the embedding-document text for a service: name,
// description, capability descriptions, domain tags, interaction modes.
func ServiceDocument(svc domain.Service) string {
	var b strings.Builder
	b.WriteString(svc.Name)
	b.WriteString(". ")
	b.WriteString(svc.Description)
	for _, c := range svc.Capabilities {
		b.WriteString(". ")
		b.WriteString(c.Description)
	}
	if len(svc.Domains) > 0 {
		b.WriteString(". ")
		b.WriteString(strings.Join(svc.Domains, ", "))
	}
	if svc.AgentProtocol != nil {
		b.WriteString(". ")
		b.WriteString(interactionModes(*svc.AgentProtocol))
	}
	return Normalize(b.String())
}

// ToolDocument builds the embedding-document text for a tool: tool name,
// description, owning service name, and the example-call text. The
// example-call text diverges by ExampleCalls.Kind — this divergence is
// intentional and observable (spec.md §4.2, §9 Design Notes).
func ToolDocument(tool domain.Tool, serviceName string) string {
	var b strings.Builder
	b.WriteString(tool.ToolName)
	b.WriteString(". ")
	b.WriteString(tool.Description)
	b.WriteString(". ")
	b.WriteString(serviceName)
	if text := exampleCallsText(tool.ExampleCalls); text != "" {
		b.WriteString(". ")
		b.WriteString(text)
	}
	return Normalize(b.String())
}

// exampleCallsText renders the sum type into document text: a mapping
// contributes its keys verbatim; a sequence contributes a count phrase;
// absence contributes nothing. Do not collapse these into one shape.
func exampleCallsText(ec domain.ExampleCalls) string {
	switch ec.Kind {
	case domain.ExampleCallsMapping:
		return strings.Join(ec.Keys, ", ")
	case domain.ExampleCallsSequence:
		return fmt.Sprintf("%d example(s)", ec.Count)
	default:
		return ""
	}
}

func interactionModes(ap domain.AgentProtocol) string {
	var modes []string
	if ap.SupportsStreaming {
		modes = append(modes, "streaming")
	}
	if ap.SupportsAsync {
		modes = append(modes, "async")
	}
	if ap.SupportsBatch {
		modes = append(modes, "batch")
	}
	return strings.Join(modes, ", ")
}
