// Package embedding maps normalized text to fixed-dimension unit vectors.
// Two back-ends implement Provider: a primary client over a hosted
// embeddings model and a deterministic fallback. See primary.go and
// fallback.go.
package embedding

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrPrimaryUnavailable is returned by a Provider's Embed/EmbedBatch when the
// primary back-end could not be reached mid-flight. The pipeline treats this
// as a transient error for the current request; it does not silently rebind
// to the fallback.
var ErrPrimaryUnavailable = errors.New("embedding: primary backend unavailable")

// Backend names which implementation produced a vector, surfaced in
// response metadata as embedding_backend.
type Backend string

const (
	BackendPrimary  Backend = "primary"
	BackendFallback Backend = "fallback"
)

// Provider maps normalized text to a fixed-dimension unit-norm vector.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns vectors for multiple texts in one call. Batch
	// inference is preferred over repeated Embed calls where supported.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the fixed vector length this provider produces.
	Dimension() int
	// Backend identifies which implementation this is, for metadata.
	Backend() Backend
}

// Normalize applies the input-normalization contract shared by every
// Provider: lowercase, collapse internal whitespace, trim, NFKC.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	return strings.Join(fields, " ")
}
