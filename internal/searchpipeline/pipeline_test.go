package searchpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

type staticIndexes struct {
	services *vectorindex.Flat
	tools    *vectorindex.Flat
}

func (s staticIndexes) ServicesIndex() *vectorindex.Flat { return s.services }
func (s staticIndexes) ToolsIndex() *vectorindex.Flat    { return s.tools }

func newTestPipeline(t *testing.T) (*Pipeline, *registryread.MemoryStore, *embedding.Fallback) {
	t.Helper()
	store := registryread.NewMemoryStore()
	embedder := embedding.NewFallback(32, 7)

	shoesSvc := domain.Service{
		ID: 1, Name: "ShoesAgent", Description: "helps customers buy shoes online",
		Kind: domain.ServiceKindInternalAgent, Status: domain.ServiceStatusActive,
		Visibility: domain.VisibilityPublic,
	}
	store.PutService(shoesSvc)
	store.PutTool(domain.Tool{
		ID: 100, ServiceID: 1, ToolName: "product_search",
		Description: "search the shoe catalog by query", IsActive: true,
	})

	ctx := context.Background()
	servicesIdx := vectorindex.NewFlat(embedder.Dimension())
	toolsIdx := vectorindex.NewFlat(embedder.Dimension())

	svcVec, err := embedder.Embed(ctx, embedding.ServiceDocument(shoesSvc))
	require.NoError(t, err)
	require.NoError(t, servicesIdx.Add(ctx, shoesSvc.ID, svcVec))

	toolVec, err := embedder.Embed(ctx, embedding.ToolDocument(mustTool(t, store, 100), shoesSvc.Name))
	require.NoError(t, err)
	require.NoError(t, toolsIdx.Add(ctx, 100, toolVec))

	feedbackStore := feedback.NewMemoryStore()
	ranker := feedback.NewRanker(feedbackStore, feedback.Bounds{Min: -0.1, Max: 0.2})

	p := New(Config{
		Store:          store,
		Embedder:       embedder,
		Indexes:        staticIndexes{services: servicesIdx, tools: toolsIdx},
		ResponseCache:  cache.NewResponseCache(100, time.Minute, nil),
		EmbeddingCache: cache.NewEmbeddingCache(100, time.Hour, nil),
		Policy:         policy.New("test"),
		Ranker:         ranker,
		FeedbackStore:  feedbackStore,
		Pipeline:       config.PipelineConfig{OverFetchFactor: 3, KeywordMaxCandidates: 500},
		Telemetry:      telemetry.Noop(),
	})
	return p, store, embedder
}

func mustTool(t *testing.T, store *registryread.MemoryStore, id int64) domain.Tool {
	t.Helper()
	tb, err := store.GetToolBundle(context.Background(), id)
	require.NoError(t, err)
	return tb.Tool
}

func authenticatedCaller() domain.Identity {
	return domain.Identity{ID: "user-1", Roles: []string{"member"}, Active: true}
}

func TestSearchToolsOnlyReturnsMatchingTool(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	resp, apiErr := p.Search(context.Background(), Request{
		Query: "shoes agent", Limit: 5, Mode: ModeToolsOnly, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "product_search", resp.Results[0].RecommendedTool.ToolName)
	require.Equal(t, "vector", resp.Metadata.SearchBackend)
	require.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearchCapabilitiesModeSearchesServicesIndex(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	resp, apiErr := p.Search(context.Background(), Request{
		Query: "shoes agent", Limit: 5, Mode: ModeCapabilities, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "ShoesAgent", resp.Results[0].Service.Name)
	require.Nil(t, resp.Results[0].RecommendedTool)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, apiErr := p.Search(context.Background(), Request{
		Query: "   ", Limit: 5, Mode: ModeToolsOnly, Identity: authenticatedCaller(),
		ExcludeServices: map[int64]bool{},
	})
	require.NotNil(t, apiErr)
}

func TestSearchSecondIdenticalRequestHitsResponseCache(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	req := Request{
		Query: "shoes agent", Limit: 5, Mode: ModeToolsOnly, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	}
	first, apiErr := p.Search(context.Background(), req)
	require.Nil(t, apiErr)
	require.False(t, first.Metadata.CacheHit)

	second, apiErr := p.Search(context.Background(), req)
	require.Nil(t, apiErr)
	require.True(t, second.Metadata.CacheHit)
}

func TestSearchExcludesDeniedService(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	store.PutService(domain.Service{
		ID: 2, Name: "InternalOnlyAgent", Description: "internal-only shoes helper",
		Status: domain.ServiceStatusActive, Visibility: domain.VisibilityInternal,
	})
	store.PutTool(domain.Tool{ID: 200, ServiceID: 2, ToolName: "internal_search", Description: "shoes agent internal search", IsActive: true})

	ctx := context.Background()
	vec, err := p.embedder.Embed(ctx, embedding.ToolDocument(mustTool(t, store, 200), "InternalOnlyAgent"))
	require.NoError(t, err)
	require.NoError(t, p.indexes.ToolsIndex().Add(ctx, 200, vec))

	resp, apiErr := p.Search(ctx, Request{
		Query: "shoes agent", Limit: 5, Mode: ModeToolsOnly, Verbosity: VerbosityFull,
		Identity: domain.Identity{Anonymous: true}, ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	for _, r := range resp.Results {
		require.NotEqual(t, int64(2), r.Service.ID)
	}
}

func TestSearchKeywordFallbackWhenIndexEmpty(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	p.indexes.(staticIndexes).tools.Remove(context.Background(), 100)

	resp, apiErr := p.Search(context.Background(), Request{
		Query: "product search", Limit: 5, Mode: ModeToolsOnly, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	require.Equal(t, "keyword", resp.Metadata.SearchBackend)
	require.NotEmpty(t, resp.Results)
}

func TestSearchWorkflowsModeDegradesToToolsOnly(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	resp, apiErr := p.Search(context.Background(), Request{
		Query: "shoes agent", Limit: 5, Mode: ModeWorkflows, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	require.Equal(t, "workflows", resp.Metadata.FallbackFrom)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		require.NotNil(t, r.RecommendedTool)
	}
}

func TestRecordSelectionDelegatesToFeedbackStore(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	resp, apiErr := p.Search(context.Background(), Request{
		Query: "shoes agent", Limit: 5, Mode: ModeToolsOnly, Verbosity: VerbosityFull,
		Identity: authenticatedCaller(), ExcludeServices: map[int64]bool{},
	})
	require.Nil(t, apiErr)
	require.NotEmpty(t, resp.Results)

	err := p.RecordSelection(context.Background(), domain.UserSelectionRecord{
		SearchID: resp.Metadata.SearchID, Position: 1, SelectedID: resp.Results[0].resultKey(),
		CallerID: "user-1", Timestamp: time.Now(),
	})
	require.NoError(t, err)
}

func TestSimilarExcludesTheQueriedService(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	store.PutService(domain.Service{
		ID: 3, Name: "BootsAgent", Description: "helps customers buy shoes and boots online",
		Status: domain.ServiceStatusActive, Visibility: domain.VisibilityPublic,
	})
	ctx := context.Background()
	bundle, err := store.GetServiceBundle(ctx, 3)
	require.NoError(t, err)
	vec, err := p.embedder.Embed(ctx, embedding.ServiceDocument(bundle.Service))
	require.NoError(t, err)
	require.NoError(t, p.indexes.ServicesIndex().Add(ctx, 3, vec))

	results, apiErr := p.Similar(ctx, 1, 5, authenticatedCaller())
	require.Nil(t, apiErr)
	for _, r := range results {
		require.NotEqual(t, int64(1), r.Service.ID)
	}
}
