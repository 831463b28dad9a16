// Package config loads capsearchd's configuration from the environment,
// layering documented defaults under whatever is actually set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the search service recognizes. Precedence:
// environment variables always win over the defaults below; there is no
// config file for this deployment.
type Config struct {
	Embedding EmbeddingConfig
	Index     IndexConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Pipeline  PipelineConfig
	Feedback  FeedbackConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	HTTP      HTTPConfig
}

// EmbeddingConfig configures C1.
type EmbeddingConfig struct {
	Model             string
	Dimension         int
	FallbackSeed      int64
	PrimaryBaseURL    string
	PrimaryAPIKey     string
	PrimaryTimeout    time.Duration
}

// IndexConfig configures C2 persistence.
type IndexConfig struct {
	Dir string
}

// CacheConfig configures C4.
type CacheConfig struct {
	ResponseTTL       time.Duration
	EmbeddingTTL      time.Duration
	ResponseCapacity  int
	EmbeddingCapacity int
	SharedRedisEnabled bool
}

// RateLimitConfig configures C8's limiter.
type RateLimitConfig struct {
	DefaultPerMinute int
	Burst            int
	ClusterEnabled   bool
}

// PipelineConfig configures C7.
type PipelineConfig struct {
	RequestTimeout    time.Duration
	OverFetchFactor   int
	BoostMin          float64
	BoostMax          float64
	KeywordMaxCandidates int
}

// FeedbackConfig configures C6's ranker refresh cadence. The decay buckets
// are not configurable here; the ranker uses feedback.DefaultDecayBuckets.
type FeedbackConfig struct {
	RefreshInterval time.Duration
}

// AuthConfig configures C8's token verification.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
}

// RedisConfig configures the optional shared cache tier. Validate requires
// Addr when RATE_LIMIT_CLUSTER_ENABLED is set, but the service wiring builds
// a process-local rate limiter either way.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MongoConfig configures the registry/feedback persistence tier.
type MongoConfig struct {
	URI      string
	Database string
}

// HTTPConfig configures the transport listener.
type HTTPConfig struct {
	Addr string
}

// Load builds a Config from defaults overlaid with environment variables,
// then validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Embedding: EmbeddingConfig{
			Model:          "fallback-tf-v1",
			Dimension:      256,
			FallbackSeed:   42,
			PrimaryTimeout: 5 * time.Second,
		},
		Index: IndexConfig{
			Dir: "./data/index",
		},
		Cache: CacheConfig{
			ResponseTTL:       time.Hour,
			EmbeddingTTL:      24 * time.Hour,
			ResponseCapacity:  10_000,
			EmbeddingCapacity: 10_000,
		},
		RateLimit: RateLimitConfig{
			DefaultPerMinute: 60,
			Burst:            10,
		},
		Pipeline: PipelineConfig{
			RequestTimeout:       5 * time.Second,
			OverFetchFactor:      3,
			BoostMin:             -0.1,
			BoostMax:             0.2,
			KeywordMaxCandidates: 500,
		},
		Feedback: FeedbackConfig{
			RefreshInterval: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Mongo: MongoConfig{
			Database: "capsearch",
		},
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envOverride("EMBEDDING_MODEL", &c.Embedding.Model)
	envOverrideInt("EMBEDDING_DIMENSION", &c.Embedding.Dimension)
	envOverrideInt64("EMBEDDING_FALLBACK_SEED", &c.Embedding.FallbackSeed)
	envOverride("EMBEDDING_PRIMARY_BASE_URL", &c.Embedding.PrimaryBaseURL)
	envOverride("EMBEDDING_PRIMARY_API_KEY", &c.Embedding.PrimaryAPIKey)
	envOverrideDuration("EMBEDDING_PRIMARY_TIMEOUT_MS", &c.Embedding.PrimaryTimeout, time.Millisecond)

	envOverride("INDEX_DIR", &c.Index.Dir)

	envOverrideDuration("RESPONSE_CACHE_TTL_SECONDS", &c.Cache.ResponseTTL, time.Second)
	envOverrideDuration("EMBEDDING_CACHE_TTL_SECONDS", &c.Cache.EmbeddingTTL, time.Second)
	envOverrideInt("RESPONSE_CACHE_CAPACITY", &c.Cache.ResponseCapacity)
	envOverrideInt("EMBEDDING_CACHE_CAPACITY", &c.Cache.EmbeddingCapacity)
	envOverrideBool("CACHE_SHARED_REDIS_ENABLED", &c.Cache.SharedRedisEnabled)

	envOverrideInt("RATE_LIMIT_DEFAULT_PER_MINUTE", &c.RateLimit.DefaultPerMinute)
	envOverrideInt("RATE_LIMIT_BURST", &c.RateLimit.Burst)
	envOverrideBool("RATE_LIMIT_CLUSTER_ENABLED", &c.RateLimit.ClusterEnabled)

	envOverrideDuration("REQUEST_TIMEOUT_MS", &c.Pipeline.RequestTimeout, time.Millisecond)
	envOverrideInt("OVER_FETCH_FACTOR", &c.Pipeline.OverFetchFactor)
	envOverrideBoostBounds("BOOST_BOUNDS", &c.Pipeline.BoostMin, &c.Pipeline.BoostMax)
	envOverrideInt("KEYWORD_MAX_CANDIDATES", &c.Pipeline.KeywordMaxCandidates)

	envOverrideDuration("FEEDBACK_REFRESH_SECONDS", &c.Feedback.RefreshInterval, time.Second)

	envOverride("JWT_SIGNING_KEY", &c.Auth.JWTSigningKey)
	envOverride("JWT_ISSUER", &c.Auth.JWTIssuer)

	envOverride("REDIS_ADDR", &c.Redis.Addr)
	envOverride("REDIS_PASSWORD", &c.Redis.Password)
	envOverrideInt("REDIS_DB", &c.Redis.DB)

	envOverride("MONGO_URI", &c.Mongo.URI)
	envOverride("MONGO_DATABASE", &c.Mongo.Database)

	envOverride("HTTP_ADDR", &c.HTTP.Addr)
}

// Validate checks cross-field invariants that a bad env var could violate.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Pipeline.OverFetchFactor <= 0 {
		return fmt.Errorf("OVER_FETCH_FACTOR must be positive, got %d", c.Pipeline.OverFetchFactor)
	}
	if c.Pipeline.BoostMin > c.Pipeline.BoostMax {
		return fmt.Errorf("BOOST_BOUNDS min %f exceeds max %f", c.Pipeline.BoostMin, c.Pipeline.BoostMax)
	}
	if c.RateLimit.DefaultPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_DEFAULT_PER_MINUTE must be positive, got %d", c.RateLimit.DefaultPerMinute)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive, got %d", c.RateLimit.Burst)
	}
	if c.Cache.SharedRedisEnabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when CACHE_SHARED_REDIS_ENABLED is set")
	}
	if c.RateLimit.ClusterEnabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_CLUSTER_ENABLED is set")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envOverrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envOverrideDuration(key string, dst *time.Duration, unit time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * unit
		}
	}
}

// envOverrideBoostBounds parses "min,max" into two floats.
func envOverrideBoostBounds(key string, min, max *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return
	}
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLo == nil && errHi == nil {
		*min, *max = lo, hi
	}
}
