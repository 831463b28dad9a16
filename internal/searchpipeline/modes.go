package searchpipeline

import "goa.design/capsearch/internal/apierr"

// Mode selects which index or indexes a search queries and how results are
// composed, per spec.md §4.7.
type Mode string

const (
	ModeToolsOnly      Mode = "tools_only"
	ModeAgentsAndTools Mode = "agents_and_tools"
	ModeWorkflows      Mode = "workflows"
	ModeCapabilities   Mode = "capabilities"
	// modeAgentsOnly is the historical mode explicitly disallowed by
	// spec.md §4.7; kept unexported so ParseMode can name it in its
	// rejection without exporting it as a usable value.
	modeAgentsOnly Mode = "agents_only"
)

// DefaultMode is used when a request omits search_mode.
const DefaultMode = ModeToolsOnly

// ParseMode validates a caller-supplied mode string, rejecting the
// historical agents_only mode and any unrecognized value.
func ParseMode(raw string) (Mode, *apierr.Error) {
	if raw == "" {
		return DefaultMode, nil
	}
	m := Mode(raw)
	if m == modeAgentsOnly {
		return "", apierr.New(apierr.KindValidation, apierr.CodeRejectedMode, "search_mode \"agents_only\" has been removed", "")
	}
	switch m {
	case ModeToolsOnly, ModeAgentsAndTools, ModeWorkflows, ModeCapabilities:
		return m, nil
	default:
		return "", apierr.New(apierr.KindValidation, apierr.CodeInvalidMode, "unrecognized search_mode: "+raw, "")
	}
}
