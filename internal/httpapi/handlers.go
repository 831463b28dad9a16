package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"goa.design/capsearch/internal/apierr"
	"goa.design/capsearch/internal/auth"
	"goa.design/capsearch/internal/domain"
	"goa.design/capsearch/internal/searchpipeline"
	"goa.design/capsearch/internal/vectorindex"
)

// searchParams is the union of GET query-string and POST JSON-body shapes
// for /api/v1/search (spec.md §6).
type searchParams struct {
	Query                string   `json:"query"`
	Limit                int      `json:"limit"`
	MinScore             float64  `json:"min_score"`
	SearchMode           string   `json:"search_mode"`
	ResponseMode         string   `json:"response_mode"`
	IncludeOrchestration bool     `json:"include_orchestration"`
	Domains              []string `json:"domains"`
	Capabilities         []string `json:"capabilities"`
	ExcludeServices      []int64  `json:"exclude_services"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestIDFromContext(ctx)

	identity, decision, err := s.gate.Admit(ctx, auth.CredentialsFromRequest(r))
	if err != nil {
		s.respondAuthFailure(ctx, w, requestID, err, decision)
		return
	}
	setRateLimitHeaders(w, decision)

	params, perr := parseSearchParams(r)
	if perr != nil {
		s.writeError(ctx, w, requestID, perr)
		return
	}

	mode, modeErr := searchpipeline.ParseMode(params.SearchMode)
	if modeErr != nil {
		s.writeError(ctx, w, requestID, modeErr)
		return
	}
	verbosity := searchpipeline.ParseVerbosity(params.ResponseMode)

	exclude := make(map[int64]bool, len(params.ExcludeServices))
	for _, id := range params.ExcludeServices {
		exclude[id] = true
	}

	resp, searchErr := s.pipeline.Search(ctx, searchpipeline.Request{
		Query:                params.Query,
		Limit:                params.Limit,
		MinScore:             params.MinScore,
		Mode:                 mode,
		Verbosity:            verbosity,
		IncludeOrchestration: params.IncludeOrchestration,
		Domains:              params.Domains,
		Capabilities:         params.Capabilities,
		ExcludeServices:      exclude,
		Identity:             identity,
	})
	if searchErr != nil {
		s.writeError(ctx, w, requestID, searchErr)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, resp)
}

func parseSearchParams(r *http.Request) (searchParams, *apierr.Error) {
	if r.Method == http.MethodPost {
		var params searchParams
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return searchParams{}, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "failed to read request body", "")
		}
		defer r.Body.Close()
		if len(body) > 0 {
			if err := json.Unmarshal(body, &params); err != nil {
				return searchParams{}, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "malformed JSON body", "")
			}
		}
		return params, nil
	}

	q := r.URL.Query()
	return searchParams{
		Query:                q.Get("query"),
		Limit:                parseIntParam(q.Get("limit"), 10),
		MinScore:             parseFloatParam(q.Get("min_score"), 0),
		SearchMode:           q.Get("search_mode"),
		ResponseMode:         q.Get("response_mode"),
		IncludeOrchestration: parseBoolParam(q.Get("include_orchestration"), false),
		Domains:              q["domains[]"],
		Capabilities:         q["capabilities[]"],
		ExcludeServices:      parseInt64List(q["exclude_services[]"]),
	}, nil
}

func parseInt64List(raw []string) []int64 {
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// feedbackParams is the JSON body for POST /api/v1/search/feedback.
type feedbackParams struct {
	SearchID        string `json:"search_id"`
	Position        int    `json:"position"`
	SelectedID      string `json:"selected_id"`
	SelectionTimeMS *int64 `json:"selection_time_ms,omitempty"`
	Satisfaction    *bool  `json:"satisfaction,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestIDFromContext(ctx)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "method not allowed", ""))
		return
	}

	identity, decision, err := s.gate.Admit(ctx, auth.CredentialsFromRequest(r))
	if err != nil {
		s.respondAuthFailure(ctx, w, requestID, err, decision)
		return
	}
	setRateLimitHeaders(w, decision)

	var params feedbackParams
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "failed to read request body", ""))
		return
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, &params); err != nil {
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "malformed JSON body", ""))
		return
	}

	rec := domain.UserSelectionRecord{
		SearchID:     params.SearchID,
		Position:     params.Position,
		SelectedID:   params.SelectedID,
		CallerID:     identity.ID,
		Timestamp:    time.Now(),
		Satisfaction: params.Satisfaction,
	}
	if recErr := s.pipeline.RecordSelection(ctx, rec); recErr != nil {
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindValidation, apierr.CodeUnknownSearch, recErr.Error(), ""))
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := s.invalidation.Status()
	s.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"services_index_size": indexLen(s.invalidation.ServicesIndex()),
		"tools_index_size":    indexLen(s.invalidation.ToolsIndex()),
		"index_stale":         status.IndexStale,
		"last_rebuild_error":  status.LastRebuildErr,
		"last_rebuild_time":   status.LastRebuildTime,
	})
}

// indexLen reports 0 for a nil *vectorindex.Flat rather than panicking. The
// invalidation controller itself starts with empty, non-nil indexes.
func indexLen(idx *vectorindex.Flat) int {
	if idx == nil {
		return 0
	}
	return idx.Len()
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestIDFromContext(ctx)

	identity, decision, err := s.gate.Admit(ctx, auth.CredentialsFromRequest(r))
	if err != nil {
		s.respondAuthFailure(ctx, w, requestID, err, decision)
		return
	}
	setRateLimitHeaders(w, decision)

	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/search/similar/")
	serviceID, convErr := strconv.ParseInt(idStr, 10, 64)
	if convErr != nil {
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "service_id must be an integer", ""))
		return
	}

	limit := parseIntParam(r.URL.Query().Get("limit"), 10)
	results, apiErr := s.pipeline.Similar(ctx, serviceID, limit, identity)
	if apiErr != nil {
		s.writeError(ctx, w, requestID, apiErr)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, map[string]any{"results": results, "total_results": len(results)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := s.invalidation.Status()
	s.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"status": "ok",
		"components": map[string]string{
			"api":            "ok",
			"registry":       "ok",
			"services_index": componentHealth(indexLen(s.invalidation.ServicesIndex()) > 0, status.IndexStale),
			"tools_index":    componentHealth(indexLen(s.invalidation.ToolsIndex()) > 0, status.IndexStale),
			"cache":          "ok",
		},
	})
}

func componentHealth(populated, stale bool) string {
	if !populated {
		return "empty"
	}
	if stale {
		return "stale"
	}
	return "ok"
}

// respondAuthFailure maps an auth.Gate error to the external error kind per
// spec.md §7: rate-limit exhaustion surfaces as 429 with Retry-After and the
// X-RateLimit-* headers, every other resolution failure
// (missing/ambiguous/invalid credential) as 401.
func (s *Server) respondAuthFailure(ctx context.Context, w http.ResponseWriter, requestID string, err error, decision auth.Decision) {
	if errors.Is(err, auth.ErrRateLimited) {
		setRateLimitHeaders(w, decision)
		retryAfter := int64(time.Until(decision.ResetAt).Round(time.Second) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		s.writeError(ctx, w, requestID, apierr.New(apierr.KindRateLimited, apierr.CodeRateLimited, err.Error(), ""))
		return
	}
	s.writeError(ctx, w, requestID, apierr.New(apierr.KindUnauthenticated, apierr.CodeMissingCredential, err.Error(), ""))
}
