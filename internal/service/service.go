// Package service wires the capability-search components into a single
// long-lived aggregate, replacing the reference implementation's
// process-wide singletons (spec.md §9 "Global mutable state" redesign
// note) with an explicit value every test or process constructs and owns.
package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	authmongo "goa.design/capsearch/internal/auth/mongo"
	feedbackmongo "goa.design/capsearch/internal/feedback/mongo"
	registrymongo "goa.design/capsearch/internal/registryread/mongo"

	"github.com/redis/go-redis/v9"

	"goa.design/capsearch/internal/auth"
	"goa.design/capsearch/internal/cache"
	"goa.design/capsearch/internal/config"
	"goa.design/capsearch/internal/embedding"
	"goa.design/capsearch/internal/feedback"
	"goa.design/capsearch/internal/httpapi"
	"goa.design/capsearch/internal/invalidation"
	"goa.design/capsearch/internal/policy"
	"goa.design/capsearch/internal/registryread"
	"goa.design/capsearch/internal/searchpipeline"
	"goa.design/capsearch/internal/telemetry"
)

// Search bundles every collaborator C7 through C9 need. It is the single
// long-lived instance a process (or a test) constructs; nothing here is a
// package-level variable.
type Search struct {
	Config       *config.Config
	Telemetry    telemetry.Bundle
	Store        registryread.Store
	FeedbackStore feedback.Store
	Embedder     embedding.Provider
	ResponseCache  *cache.ResponseCache
	EmbeddingCache *cache.EmbeddingCache
	Policy       *policy.Engine
	Ranker       *feedback.Ranker
	Gate         *auth.Gate
	Invalidation *invalidation.Controller
	Events       *invalidation.ChannelSource
	Pipeline     *searchpipeline.Pipeline
	HTTP         *httpapi.Server

	mongoClient *mongo.Client
	redisClient *redis.Client
}

// New builds a Search aggregate from cfg. Every collaborator is
// constructed here, in dependency order, and handed to the next; nothing
// is reached for via an ambient global afterward.
func New(ctx context.Context, cfg *config.Config, telem telemetry.Bundle) (*Search, error) {
	s := &Search{Config: cfg, Telemetry: telem}

	if err := s.wireRedis(ctx); err != nil {
		return nil, err
	}
	if err := s.wireMongo(ctx); err != nil {
		return nil, err
	}
	if err := s.wireStores(ctx); err != nil {
		return nil, err
	}
	if err := s.wireEmbedder(); err != nil {
		return nil, err
	}
	s.wireCaches()
	s.Policy = policy.New("capsearchd")
	s.Ranker = feedback.NewRanker(s.FeedbackStore, feedback.Bounds{Min: cfg.Pipeline.BoostMin, Max: cfg.Pipeline.BoostMax})
	s.wireAuth(ctx)

	s.Invalidation = invalidation.NewController(invalidation.Config{
		Store:          s.Store,
		Embedder:       s.Embedder,
		ResponseCache:  s.ResponseCache,
		EmbeddingCache: s.EmbeddingCache,
		SnapshotDir:    cfg.Index.Dir,
		Telemetry:      telem,
	})
	if err := s.Invalidation.LoadSnapshots(ctx, cfg.Embedding.Model); err != nil {
		telem.Logger.Warn(ctx, "service: initial index load failed, serving with empty indexes", "error", err.Error())
	}
	s.Events = invalidation.NewChannelSource(256)
	go s.Invalidation.Run(context.Background(), s.Events)

	s.Pipeline = searchpipeline.New(searchpipeline.Config{
		Store:          s.Store,
		Embedder:       s.Embedder,
		Indexes:        s.Invalidation,
		ResponseCache:  s.ResponseCache,
		EmbeddingCache: s.EmbeddingCache,
		Policy:         s.Policy,
		Ranker:         s.Ranker,
		FeedbackStore:  s.FeedbackStore,
		Pipeline:       cfg.Pipeline,
		Telemetry:      telem,
	})

	s.Ranker.StartRefresh(context.Background(), cfg.Feedback.RefreshInterval, time.Now)

	s.HTTP = httpapi.NewServer(httpapi.Config{
		Pipeline:     s.Pipeline,
		Gate:         s.Gate,
		Invalidation: s.Invalidation,
		Telemetry:    telem,
	})

	return s, nil
}

func (s *Search) wireRedis(ctx context.Context) error {
	if s.Config.Redis.Addr == "" {
		return nil
	}
	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     s.Config.Redis.Addr,
		Password: s.Config.Redis.Password,
		DB:       s.Config.Redis.DB,
	})
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("service: connect redis: %w", err)
	}
	return nil
}

func (s *Search) wireMongo(ctx context.Context) error {
	if s.Config.Mongo.URI == "" {
		return nil
	}
	client, err := mongo.Connect(mongooptions.Client().ApplyURI(s.Config.Mongo.URI))
	if err != nil {
		return fmt.Errorf("service: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("service: ping mongo: %w", err)
	}
	s.mongoClient = client
	return nil
}

// wireStores picks the Mongo-backed registry/feedback stores when a Mongo
// URI is configured, and the in-process ones otherwise — the same
// memory/Mongo seam spec.md §4.6 calls for.
func (s *Search) wireStores(ctx context.Context) error {
	if s.mongoClient == nil {
		s.Store = registryread.NewMemoryStore()
		s.FeedbackStore = feedback.NewMemoryStore()
		return nil
	}

	registryStore, err := registrymongo.New(ctx, registrymongo.Options{
		Client:   s.mongoClient,
		Database: s.Config.Mongo.Database,
	})
	if err != nil {
		return fmt.Errorf("service: build registry store: %w", err)
	}
	s.Store = registryStore

	feedbackStore, err := feedbackmongo.New(ctx, feedbackmongo.Options{
		Client:   s.mongoClient,
		Database: s.Config.Mongo.Database,
	})
	if err != nil {
		return fmt.Errorf("service: build feedback store: %w", err)
	}
	s.FeedbackStore = feedbackStore
	return nil
}

// wireEmbedder builds the primary OpenAI-compatible provider when
// configured, falling back to the deterministic in-process model
// otherwise (spec.md §4.1).
func (s *Search) wireEmbedder() error {
	cfg := s.Config.Embedding
	if cfg.PrimaryBaseURL == "" {
		s.Embedder = embedding.NewFallback(cfg.Dimension, cfg.FallbackSeed)
		return nil
	}
	primary, err := embedding.NewPrimary(embedding.PrimaryOptions{
		BaseURL:   cfg.PrimaryBaseURL,
		APIKey:    cfg.PrimaryAPIKey,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	})
	if err != nil {
		return fmt.Errorf("service: build primary embedder: %w", err)
	}
	s.Embedder = primary
	return nil
}

func (s *Search) wireCaches() {
	var shared *cache.SharedRedis
	if s.Config.Cache.SharedRedisEnabled && s.redisClient != nil {
		shared = cache.NewSharedRedis(s.redisClient)
	}
	s.ResponseCache = cache.NewResponseCache(s.Config.Cache.ResponseCapacity, s.Config.Cache.ResponseTTL, shared)
	s.EmbeddingCache = cache.NewEmbeddingCache(s.Config.Cache.EmbeddingCapacity, s.Config.Cache.EmbeddingTTL, shared)
}

// wireAuth builds the identity resolver and rate limiter. API-key lookup is
// only available once Mongo is configured; a deployment without Mongo
// admits bearer tokens only.
func (s *Search) wireAuth(ctx context.Context) {
	var keys auth.APIKeyLookup
	if s.mongoClient != nil {
		store, err := authmongo.New(ctx, authmongo.Options{Client: s.mongoClient, Database: s.Config.Mongo.Database})
		if err != nil {
			s.Telemetry.Logger.Warn(ctx, "service: api key store unavailable, disabling api-key auth", "error", err.Error())
		} else {
			keys = store
		}
	}
	resolver := auth.NewResolver(auth.NewHMACVerifier([]byte(s.Config.Auth.JWTSigningKey), s.Config.Auth.JWTIssuer), keys)

	limiter := auth.NewLimiter(s.Config.RateLimit.DefaultPerMinute, s.Config.RateLimit.Burst)
	s.Gate = auth.NewGate(resolver, limiter)
}

// Close releases every external connection the aggregate opened.
func (s *Search) Close(ctx context.Context) error {
	s.Ranker.StopRefresh()
	s.Events.Close()
	var err error
	if s.mongoClient != nil {
		if e := s.mongoClient.Disconnect(ctx); e != nil {
			err = e
		}
	}
	if s.redisClient != nil {
		if e := s.redisClient.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
