package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingsClient captures the subset of the openai-go client used here, so
// tests can substitute a stub without a live endpoint.
type EmbeddingsClient interface {
	NewEmbedding(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

type liveClient struct {
	client openai.Client
}

func (c liveClient) NewEmbedding(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return c.client.Embeddings.New(ctx, params)
}

// Primary implements Provider over an OpenAI-compatible embeddings endpoint.
// It is the in-process client for "a sentence-transformer family model"
// deployed as a model server rather than loaded weights; thread-safe,
// batches requests in one call.
type Primary struct {
	client    EmbeddingsClient
	model     string
	dimension int
}

// PrimaryOptions configures a Primary provider.
type PrimaryOptions struct {
	Client    EmbeddingsClient // optional; built from BaseURL/APIKey if nil
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// NewPrimary constructs a Primary provider. If opts.Client is nil, a live
// openai-go client is built from BaseURL/APIKey.
func NewPrimary(opts PrimaryOptions) (*Primary, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("embedding: primary model identifier is required")
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("embedding: primary dimension must be positive")
	}
	cli := opts.Client
	if cli == nil {
		reqOpts := []option.RequestOption{}
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
		}
		if opts.APIKey != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
		}
		cli = liveClient{client: openai.NewClient(reqOpts...)}
	}
	return &Primary{client: cli, model: opts.Model, dimension: opts.Dimension}, nil
}

func (p *Primary) Dimension() int   { return p.dimension }
func (p *Primary) Backend() Backend { return BackendPrimary }

// Embed returns the vector for a single normalized text.
func (p *Primary) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch calls the embeddings endpoint once for the whole batch.
func (p *Primary) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.NewEmbedding(ctx, openai.EmbeddingNewParams{
		Model: p.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPrimaryUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrPrimaryUnavailable, len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = normalizeVector(vec)
	}
	return out, nil
}

// normalizeVector rescales v to unit L2 norm. A zero vector is returned
// unchanged (callers never index it, since a candidate with a zero vector
// never has meaningful similarity).
func normalizeVector(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
