// Package searchpipeline implements C7: the end-to-end search request
// flow from query intake through response shaping, plus the similarity
// and status read paths built on the same collaborators.
package searchpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"goa.design/capsearch/internal/apierr"
	"goa.design/capsearch/internal/cache"
	"goa.design/capsearch/internal/config"
	"goa.design/capsearch/internal/domain"
	"goa.design/capsearch/internal/embedding"
	"goa.design/capsearch/internal/feedback"
	"goa.design/capsearch/internal/policy"
	"goa.design/capsearch/internal/registryread"
	"goa.design/capsearch/internal/telemetry"
	"goa.design/capsearch/internal/vectorindex"
)

// IndexSource is the narrow view of the invalidation controller the
// pipeline needs: the live, read-ready index handles. Kept as an
// interface (rather than taking *invalidation.Controller directly) so
// tests can substitute bare vectorindex.Flat instances.
type IndexSource interface {
	ServicesIndex() *vectorindex.Flat
	ToolsIndex() *vectorindex.Flat
}

// ServiceView is the response-facing projection of a domain.Service; it
// carries only the fields a result ever surfaces, so verbosity shaping
// trims this instead of mutating the registry's own domain.Service value.
type ServiceView struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Description      string              `json:"description,omitempty"`
	ShortDescription string              `json:"short_description,omitempty"`
	Kind             domain.ServiceKind  `json:"kind"`
	Status           domain.ServiceStatus `json:"status"`
	Version          string              `json:"version,omitempty"`
	Capabilities     []domain.Capability `json:"capabilities,omitempty"`
	Domains          []string            `json:"domains,omitempty"`
}

// ToolView is the response-facing projection of a domain.Tool.
type ToolView struct {
	ID              int64              `json:"id"`
	ToolName        string             `json:"tool_name"`
	Description     string             `json:"description,omitempty"`
	InputSchema     string             `json:"input_schema,omitempty"`
	OutputSchema    string             `json:"output_schema,omitempty"`
	ExampleCalls    domain.ExampleCalls `json:"example_calls,omitempty"`
	EndpointPattern string             `json:"endpoint_pattern,omitempty"`
}

// CapabilityMatch is one capability-level hit, populated only in
// capabilities mode (spec.md §4.7).
type CapabilityMatch struct {
	Name  string  `json:"name"`
	Score float32 `json:"score"`
}

// Result is one ranked item in a SearchResponse.
type Result struct {
	Service            ServiceView              `json:"service"`
	RecommendedTool    *ToolView                `json:"recommended_tool,omitempty"`
	Score              float64                  `json:"score"`
	SemanticScore      float64                  `json:"semantic_score"`
	FeedbackBoost      float64                  `json:"feedback_boost"`
	Rank               int                      `json:"rank"`
	Distance           float64                  `json:"distance"`
	IntegrationDetails *domain.IntegrationDetails `json:"integration_details,omitempty"`
	AgentProtocol      *domain.AgentProtocol    `json:"agent_protocol,omitempty"`
	CapabilityMatches  []CapabilityMatch        `json:"capability_matches,omitempty"`
}

// resultKey is the "service:<id>" / "tool:<id>" identifier recorded in a
// search-query record and matched against on feedback, per spec.md §4.6.
func (r Result) resultKey() string {
	if r.RecommendedTool != nil {
		return fmt.Sprintf("tool:%d", r.RecommendedTool.ID)
	}
	return fmt.Sprintf("service:%d", r.Service.ID)
}

// Request is one inbound search request, already validated by the HTTP
// layer's parameter parsing.
type Request struct {
	Query                string
	Limit                int
	MinScore             float64
	Mode                 Mode
	Verbosity            Verbosity
	IncludeOrchestration bool
	Domains              []string
	Capabilities         []string
	ExcludeServices      map[int64]bool
	Identity             domain.Identity
}

// Metadata is the response's diagnostic envelope.
type Metadata struct {
	SearchID         string          `json:"search_id"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	CacheHit         bool            `json:"cache_hit"`
	EmbeddingBackend embedding.Backend `json:"embedding_backend"`
	SearchBackend    string          `json:"search_backend"` // "vector" or "keyword"
	FallbackFrom     string          `json:"fallback_from,omitempty"`
}

// Response is the full search response, serialized as the response cache
// value and as the HTTP body.
type Response struct {
	Query        string   `json:"query"`
	SearchMode   Mode     `json:"search_mode"`
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
	Metadata     Metadata `json:"metadata"`
}

// Config bundles every collaborator the pipeline needs.
type Config struct {
	Store          registryread.Store
	Embedder       embedding.Provider
	Indexes        IndexSource
	ResponseCache  *cache.ResponseCache
	EmbeddingCache *cache.EmbeddingCache
	Policy         *policy.Engine
	Ranker         *feedback.Ranker
	FeedbackStore  feedback.Store
	Pipeline       config.PipelineConfig
	Telemetry      telemetry.Bundle
	Now            func() time.Time
}

// Pipeline is C7: it wires the embedding provider, the two vector indexes,
// the registry read model, the policy filter, the feedback ranker, and
// the caches into the ten-step request flow from spec.md §4.7.
type Pipeline struct {
	store          registryread.Store
	embedder       embedding.Provider
	indexes        IndexSource
	responseCache  *cache.ResponseCache
	embeddingCache *cache.EmbeddingCache
	policyEngine   *policy.Engine
	ranker         *feedback.Ranker
	feedbackStore  feedback.Store
	cfg            config.PipelineConfig
	telemetry      telemetry.Bundle
	now            func() time.Time
}

// New constructs a Pipeline from its collaborators.
func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		indexes:        cfg.Indexes,
		responseCache:  cfg.ResponseCache,
		embeddingCache: cfg.EmbeddingCache,
		policyEngine:   cfg.Policy,
		ranker:         cfg.Ranker,
		feedbackStore:  cfg.FeedbackStore,
		cfg:            cfg.Pipeline,
		telemetry:      cfg.Telemetry,
		now:            now,
	}
}

// Search executes the full pipeline for one request: normalize, cache
// lookup, embed, search, enrich, filter, boost, rank, shape, record.
// Gating through C8 happens one layer up, in the HTTP handler, so the
// identity arrives on req already resolved.
func (p *Pipeline) Search(ctx context.Context, req Request) (*Response, *apierr.Error) {
	start := p.now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, apierr.New(apierr.KindValidation, apierr.CodeInvalidQuery, "query must not be empty", "")
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	normalized := embedding.Normalize(req.Query)
	fingerprint := cache.Fingerprint(req.Identity.Roles, req.Identity.Attributes)
	cacheKey := cache.ResponseKey(normalized, string(req.Mode), string(req.Verbosity), fingerprint)

	if p.responseCache != nil {
		if raw, ok := p.responseCache.Get(ctx, cacheKey); ok {
			var resp Response
			if err := json.Unmarshal(raw, &resp); err == nil {
				resp.Metadata.CacheHit = true
				resp.Metadata.ProcessingTimeMS = p.now().Sub(start).Milliseconds()
				p.recordSearch(ctx, req, resp)
				return &resp, nil
			}
		}
	}

	vector, backend, embedErr := p.resolveEmbedding(ctx, normalized)
	if embedErr != nil {
		return nil, apierr.New(apierr.KindDependencyUnavailable, apierr.CodeEmbeddingUnavailable, embedErr.Error(), "")
	}

	hits, searchBackend, fallbackFrom, searchErr := p.searchIndex(ctx, req.Mode, normalized, vector, req.Limit*p.overFetchFactor())
	if searchErr != nil {
		return nil, apierr.New(apierr.KindDependencyUnavailable, apierr.CodeIndexUnavailable, searchErr.Error(), "")
	}

	results, err := p.enrichAndFilter(ctx, req, hits)
	if err != nil {
		return nil, apierr.New(apierr.KindInternal, apierr.CodeInternal, err.Error(), "")
	}

	p.applyBoostAndScore(results)
	results = dropBelowMinScore(results, req.MinScore)
	sortByFinalScore(results)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	shapeResults(results, req.Verbosity, req.IncludeOrchestration)

	resp := &Response{
		Query:        req.Query,
		SearchMode:   req.Mode,
		Results:      results,
		TotalResults: len(results),
		Metadata: Metadata{
			SearchID:         uuid.New().String(),
			ProcessingTimeMS: p.now().Sub(start).Milliseconds(),
			CacheHit:         false,
			EmbeddingBackend: backend,
			SearchBackend:    searchBackend,
			FallbackFrom:     fallbackFrom,
		},
	}

	p.recordSearch(ctx, req, *resp)
	if p.responseCache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			p.responseCache.Set(ctx, cacheKey, payload)
		}
	}
	return resp, nil
}

func (p *Pipeline) overFetchFactor() int {
	if p.cfg.OverFetchFactor <= 0 {
		return 3
	}
	return p.cfg.OverFetchFactor
}

// resolveEmbedding looks up the embedding cache, falling through to the
// provider and writing back on miss (step 3, spec.md §4.7).
func (p *Pipeline) resolveEmbedding(ctx context.Context, normalized string) ([]float32, embedding.Backend, error) {
	if p.embeddingCache != nil {
		if vec, ok := p.embeddingCache.Get(ctx, normalized); ok {
			return vec, p.embedder.Backend(), nil
		}
	}
	vec, err := p.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, "", err
	}
	if p.embeddingCache != nil {
		p.embeddingCache.Set(ctx, normalized, vec)
	}
	return vec, p.embedder.Backend(), nil
}

// searchIndex queries the index selected by mode (step 4). When the
// relevant index is unavailable or empty it falls back to a keyword scan
// over the registry, per spec.md §4.7 degraded modes; the returned backend
// string reflects what was actually used, not merely what was attempted.
// The third return value names the mode this search degraded from, set
// only when that degrade happened (currently just workflows -> tools_only).
func (p *Pipeline) searchIndex(ctx context.Context, mode Mode, normalizedQuery string, vector []float32, k int) ([]scoredHit, string, string, error) {
	switch mode {
	case ModeAgentsAndTools:
		serviceHits, serviceKeyword, err := p.searchOne(ctx, p.indexes.ServicesIndex(), normalizedQuery, vector, k, true)
		if err != nil {
			return nil, "", "", err
		}
		toolHits, toolKeyword, err := p.searchOne(ctx, p.indexes.ToolsIndex(), normalizedQuery, vector, k, false)
		if err != nil {
			return nil, "", "", err
		}
		merged := append(serviceHits, toolHits...)
		sortScoredHits(merged)
		return merged, backendLabel(serviceKeyword || toolKeyword), "", nil
	case ModeWorkflows:
		// No derived co-invocation index is populated yet; behaves like
		// tools_only until one exists (spec.md §4.7).
		hits, usedKeyword, err := p.searchOne(ctx, p.indexes.ToolsIndex(), normalizedQuery, vector, k, false)
		return hits, backendLabel(usedKeyword), "workflows", err
	case ModeCapabilities:
		hits, usedKeyword, err := p.searchOne(ctx, p.indexes.ServicesIndex(), normalizedQuery, vector, k, true)
		return hits, backendLabel(usedKeyword), "", err
	default: // ModeToolsOnly
		hits, usedKeyword, err := p.searchOne(ctx, p.indexes.ToolsIndex(), normalizedQuery, vector, k, false)
		return hits, backendLabel(usedKeyword), "", err
	}
}

// backendLabel reports the search_backend value for the given degrade state.
func backendLabel(usedKeyword bool) string {
	if usedKeyword {
		return "keyword"
	}
	return "vector"
}

type scoredHit struct {
	isService bool
	id        int64
	semantic  float32
}

// searchOne searches idx, falling back to a keyword scan when idx is
// unavailable, empty, or errors. The returned bool reports whether the
// keyword path was actually taken, so callers can report an accurate
// search_backend rather than assuming vector search always succeeded.
func (p *Pipeline) searchOne(ctx context.Context, idx *vectorindex.Flat, normalizedQuery string, vector []float32, k int, isService bool) ([]scoredHit, bool, error) {
	if idx == nil || idx.Len() == 0 {
		hits, err := p.keywordFallback(ctx, normalizedQuery, k, isService)
		return hits, true, err
	}
	hits, err := idx.Search(ctx, vector, k)
	if err != nil {
		fallback, fallbackErr := p.keywordFallback(ctx, normalizedQuery, k, isService)
		return fallback, true, fallbackErr
	}
	out := make([]scoredHit, len(hits))
	for i, h := range hits {
		out[i] = scoredHit{isService: isService, id: h.ID, semantic: h.Similarity}
	}
	return out, false, nil
}

func (p *Pipeline) keywordFallback(ctx context.Context, normalizedQuery string, k int, isService bool) ([]scoredHit, error) {
	var candidates []keywordCandidate
	if isService {
		bundles, err := p.store.ListActiveServicesWithRelations(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range bundles {
			candidates = append(candidates, keywordCandidate{ID: b.Service.ID, Text: embedding.ServiceDocument(b.Service)})
		}
	} else {
		bundles, err := p.store.ListActiveToolsWithService(ctx)
		if err != nil {
			return nil, err
		}
		for _, b := range bundles {
			candidates = append(candidates, keywordCandidate{ID: b.Tool.ID, Text: embedding.ToolDocument(b.Tool, b.Service.Service.Name)})
		}
	}
	hits := keywordScore(normalizedQuery, candidates, p.keywordMaxCandidates())
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	out := make([]scoredHit, len(hits))
	for i, h := range hits {
		out[i] = scoredHit{isService: isService, id: h.ID, semantic: h.Similarity}
	}
	return out, nil
}

func (p *Pipeline) keywordMaxCandidates() int {
	if p.cfg.KeywordMaxCandidates <= 0 {
		return 500
	}
	return p.cfg.KeywordMaxCandidates
}

func sortScoredHits(hits []scoredHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].semantic != hits[j].semantic {
			return hits[i].semantic > hits[j].semantic
		}
		return hits[i].id < hits[j].id
	})
}

// enrichAndFilter resolves each candidate's full bundle via C3 (step 5),
// then applies the C5 policy filter and the request's own domain/
// capability/exclude-service/version constraints (step 6).
func (p *Pipeline) enrichAndFilter(ctx context.Context, req Request, hits []scoredHit) ([]Result, error) {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		var bundle domain.ServiceBundle
		var tool *domain.Tool

		if h.isService {
			b, err := p.store.GetServiceBundle(ctx, h.id)
			if err != nil {
				if err == registryread.ErrNotFound {
					continue
				}
				return nil, err
			}
			bundle = b
		} else {
			tb, err := p.store.GetToolBundle(ctx, h.id)
			if err != nil {
				if err == registryread.ErrNotFound {
					continue
				}
				return nil, err
			}
			bundle = tb.Service
			t := tb.Tool
			tool = &t
		}

		if req.ExcludeServices[bundle.Service.ID] {
			continue
		}
		if !matchesFilters(bundle.Service, req.Domains, req.Capabilities) {
			continue
		}
		if p.policyEngine != nil && !p.policyEngine.Allow(req.Identity, bundle) {
			continue
		}

		result := Result{
			Service:            serviceView(bundle.Service),
			SemanticScore:      float64(h.semantic),
			Distance:           1 - float64(h.semantic),
			IntegrationDetails: bundle.IntegrationDetails,
			AgentProtocol:      bundle.AgentProtocol,
		}
		if tool != nil {
			tv := toolView(*tool)
			result.RecommendedTool = &tv
		}
		if req.Mode == ModeCapabilities {
			result.CapabilityMatches = matchCapabilities(req.Query, bundle.Service.Capabilities)
		}
		results = append(results, result)
	}
	return results, nil
}

func matchesFilters(svc domain.Service, domains, capabilities []string) bool {
	if len(domains) > 0 && !containsAny(svc.Domains, domains) {
		return false
	}
	if len(capabilities) > 0 {
		var found bool
		for _, want := range capabilities {
			for _, c := range svc.Capabilities {
				if strings.Contains(strings.ToLower(c.Name), strings.ToLower(want)) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsAny(haystack, wanted []string) bool {
	for _, w := range wanted {
		for _, h := range haystack {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func matchCapabilities(query string, capabilities []domain.Capability) []CapabilityMatch {
	queryTokens := tokenSet(query)
	var matches []CapabilityMatch
	for _, c := range capabilities {
		score := tokenOverlap(queryTokens, tokenSet(c.Description))
		if score > 0 {
			matches = append(matches, CapabilityMatch{Name: c.Name, Score: score})
		}
	}
	return matches
}

func serviceView(svc domain.Service) ServiceView {
	return ServiceView{
		ID:           svc.ID,
		Name:         svc.Name,
		Description:  svc.Description,
		Kind:         svc.Kind,
		Status:       svc.Status,
		Version:      svc.Version,
		Capabilities: svc.Capabilities,
		Domains:      svc.Domains,
	}
}

func toolView(tool domain.Tool) ToolView {
	return ToolView{
		ID:              tool.ID,
		ToolName:        tool.ToolName,
		Description:     tool.Description,
		InputSchema:     tool.InputSchema,
		OutputSchema:    tool.OutputSchema,
		ExampleCalls:    tool.ExampleCalls,
		EndpointPattern: tool.EndpointPattern,
	}
}

// applyBoostAndScore computes each result's final score from its semantic
// score and the current feedback boost (step 7). A nil ranker (feedback
// subsystem unavailable) leaves final == semantic, per spec.md §4.7's
// degraded-mode note.
func (p *Pipeline) applyBoostAndScore(results []Result) {
	var boosts feedback.BoostMap
	if p.ranker != nil {
		boosts = p.ranker.Current()
	}
	for i := range results {
		boost := 0.0
		if boosts != nil {
			boost = boosts.Boost(results[i].resultKey())
		}
		results[i].FeedbackBoost = boost
		results[i].Score = results[i].SemanticScore * (1 + boost)
	}
}

func dropBelowMinScore(results []Result, minScore float64) []Result {
	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

// sortByFinalScore orders by descending final score, ties broken by
// descending semantic score then ascending id (stable per spec.md §4.6).
func sortByFinalScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].SemanticScore != results[j].SemanticScore {
			return results[i].SemanticScore > results[j].SemanticScore
		}
		return results[i].Service.ID < results[j].Service.ID
	})
}

// shapeResults applies ShapeResult to every result in a response (step 9).
func shapeResults(results []Result, v Verbosity, includeOrchestration bool) {
	for i := range results {
		ShapeResult(&results[i], v, includeOrchestration)
	}
}

// recordSearch writes the append-only search-query record (step 10),
// capturing the ordered result-id list later feedback calls must match.
func (p *Pipeline) recordSearch(ctx context.Context, req Request, resp Response) {
	if p.feedbackStore == nil {
		return
	}
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.resultKey()
	}
	rec := domain.SearchQueryRecord{
		SearchID:       resp.Metadata.SearchID,
		QueryText:      req.Query,
		NormalizedHash: embedding.Normalize(req.Query),
		CallerID:       req.Identity.ID,
		Mode:           string(req.Mode),
		Verbosity:      string(req.Verbosity),
		ResultIDs:      ids,
		ResultCount:    len(ids),
		ResponseTimeMS: resp.Metadata.ProcessingTimeMS,
		Timestamp:      p.now(),
	}
	if err := p.feedbackStore.LogSearch(ctx, rec); err != nil {
		p.telemetry.Logger.Warn(ctx, "searchpipeline: log_search failed", "error", err.Error())
	}
}

// RecordSelection validates and appends a user-selection record, the
// write side of /search/feedback.
func (p *Pipeline) RecordSelection(ctx context.Context, rec domain.UserSelectionRecord) error {
	return p.feedbackStore.LogSelection(ctx, rec)
}

// Similar returns the services whose embeddings are closest to the given
// service's own embedding, for GET /search/similar/{service_id}.
func (p *Pipeline) Similar(ctx context.Context, serviceID int64, limit int, caller domain.Identity) ([]Result, *apierr.Error) {
	bundle, err := p.store.GetServiceBundle(ctx, serviceID)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, apierr.CodeNotFound, "service not found", "")
	}
	doc := embedding.ServiceDocument(bundle.Service)
	vec, err := p.embedder.Embed(ctx, doc)
	if err != nil {
		return nil, apierr.New(apierr.KindDependencyUnavailable, apierr.CodeEmbeddingUnavailable, err.Error(), "")
	}

	idx := p.indexes.ServicesIndex()
	hits, _, searchErr := p.searchOne(ctx, idx, embedding.Normalize(doc), vec, (limit+1)*p.overFetchFactor(), true)
	if searchErr != nil {
		return nil, apierr.New(apierr.KindDependencyUnavailable, apierr.CodeIndexUnavailable, searchErr.Error(), "")
	}

	scored := make([]scoredHit, 0, len(hits))
	for _, h := range hits {
		if h.id == serviceID {
			continue
		}
		scored = append(scored, h)
	}

	req := Request{Identity: caller, ExcludeServices: map[int64]bool{}}
	results, rerr := p.enrichAndFilter(ctx, req, scored)
	if rerr != nil {
		return nil, apierr.New(apierr.KindInternal, apierr.CodeInternal, rerr.Error(), "")
	}
	p.applyBoostAndScore(results)
	sortByFinalScore(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
