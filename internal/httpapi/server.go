// Package httpapi implements the JSON-over-HTTP transport in front of C7:
// the search, feedback, status, similarity and health endpoints from
// spec.md §6, grounded on the teacher's ServeMux-based HTTP transport
// (see internal/mcp/http.go in the emergent-company-specmcp example).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"goa.design/capsearch/internal/apierr"
	"goa.design/capsearch/internal/auth"
	"goa.design/capsearch/internal/invalidation"
	"goa.design/capsearch/internal/searchpipeline"
	"goa.design/capsearch/internal/telemetry"
)

// Server wraps the search pipeline and its collaborators with an HTTP
// transport. It holds no domain state of its own.
type Server struct {
	pipeline     *searchpipeline.Pipeline
	gate         *auth.Gate
	invalidation *invalidation.Controller
	telemetry    telemetry.Bundle
}

// Config bundles the collaborators a Server needs.
type Config struct {
	Pipeline     *searchpipeline.Pipeline
	Gate         *auth.Gate
	Invalidation *invalidation.Controller
	Telemetry    telemetry.Bundle
}

// NewServer constructs a Server.
func NewServer(cfg Config) *Server {
	return &Server{
		pipeline:     cfg.Pipeline,
		gate:         cfg.Gate,
		invalidation: cfg.Invalidation,
		telemetry:    cfg.Telemetry,
	}
}

// Handler returns the mux serving the core search surface from spec.md §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", s.withMiddleware(s.handleSearch))
	mux.HandleFunc("/api/v1/search/feedback", s.withMiddleware(s.handleFeedback))
	mux.HandleFunc("/api/v1/search/status", s.withMiddleware(s.handleStatus))
	mux.HandleFunc("/api/v1/search/similar/", s.withMiddleware(s.handleSimilar))
	mux.HandleFunc("/api/v1/health", s.withMiddleware(s.handleHealth))
	return mux
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.telemetry.Logger.Error(ctx, "httpapi: failed to write response", "error", err.Error())
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, requestID string, apiErr *apierr.Error) {
	if apiErr.RequestID == "" {
		apiErr.RequestID = requestID
	}
	s.writeJSON(ctx, w, apierr.Status(apiErr.Kind), apiErr.Envelope())
}

func setRateLimitHeaders(w http.ResponseWriter, d auth.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func parseBoolParam(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseIntParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseFloatParam(v string, def float64) float64 {
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// requestDeadline returns d, or a 5s default when d is not positive. No
// handler or middleware applies it, so requests carry no deadline of their
// own.
func requestDeadline(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
