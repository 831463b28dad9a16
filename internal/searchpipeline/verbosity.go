package searchpipeline

import "goa.design/capsearch/internal/domain"

// Verbosity controls how much of each result is shaped into the response,
// per spec.md §4.7. Lower verbosity implies a strictly smaller response.
type Verbosity string

const (
	VerbosityFull    Verbosity = "full"
	VerbosityCompact Verbosity = "compact"
	VerbosityMinimal Verbosity = "minimal"
)

// DefaultVerbosity is used when a request omits response_mode.
const DefaultVerbosity = VerbosityFull

// ParseVerbosity validates a caller-supplied verbosity string.
func ParseVerbosity(raw string) Verbosity {
	switch Verbosity(raw) {
	case VerbosityCompact:
		return VerbosityCompact
	case VerbosityMinimal:
		return VerbosityMinimal
	default:
		return DefaultVerbosity
	}
}

// ShapeResult zeroes out the fields a given verbosity must omit, applied
// just before response serialization. full keeps everything; compact
// drops schemas and example calls from the recommended tool;
// minimal additionally drops capabilities and deep descriptions.
func ShapeResult(r *Result, v Verbosity, includeOrchestration bool) {
	switch v {
	case VerbosityFull:
		// nothing to drop
	case VerbosityCompact:
		if r.RecommendedTool != nil {
			r.RecommendedTool.InputSchema = ""
			r.RecommendedTool.OutputSchema = ""
			r.RecommendedTool.ExampleCalls = domain.AbsentExampleCalls()
		}
	case VerbosityMinimal:
		r.Service.Capabilities = nil
		r.Service.ShortDescription = truncate(r.Service.Description, 140)
		r.Service.Description = ""
		if r.RecommendedTool != nil {
			r.RecommendedTool.InputSchema = ""
			r.RecommendedTool.OutputSchema = ""
			r.RecommendedTool.ExampleCalls = domain.AbsentExampleCalls()
			r.RecommendedTool.Description = ""
		}
		r.AgentProtocol = nil
		if !includeOrchestration {
			r.IntegrationDetails = nil
		} else if r.IntegrationDetails != nil {
			// Minimal + orchestration keeps only the base endpoint and
			// auth method, per spec.md §6's response-envelope note.
			r.IntegrationDetails.AuthConfig = nil
			r.IntegrationDetails.ESBRouting = nil
			r.IntegrationDetails.RateLimitHint = ""
			r.IntegrationDetails.HealthCheckEndpoint = ""
			r.IntegrationDetails.AccessProtocol = ""
		}
	}
	if !includeOrchestration && v != VerbosityMinimal {
		r.IntegrationDetails = nil
		r.AgentProtocol = nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
