// Package apierr centralizes the external error taxonomy (spec.md §7):
// stable kinds, their HTTP status mapping, and the JSON error envelope.
package apierr

import (
	"net/http"
)

// Kind names one of the stable external error categories. Kinds, not Go
// types, are what the wire contract promises to keep stable.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindUnauthenticated       Kind = "unauthenticated"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindRateLimited           Kind = "rate_limited"
	KindTimeout               Kind = "timeout"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal              Kind = "internal"
)

// statusByKind is the fixed kind→HTTP-status mapping from spec.md §7.
// dependency_unavailable defaults to 503; callers that successfully
// degraded (e.g. to the fallback embedder) should respond 200 instead of
// constructing an Error at all.
var statusByKind = map[Kind]int{
	KindValidation:            http.StatusUnprocessableEntity,
	KindUnauthenticated:       http.StatusUnauthorized,
	KindForbidden:             http.StatusForbidden,
	KindNotFound:              http.StatusNotFound,
	KindRateLimited:           http.StatusTooManyRequests,
	KindTimeout:               http.StatusGatewayTimeout,
	KindDependencyUnavailable: http.StatusServiceUnavailable,
	KindInternal:              http.StatusInternalServerError,
}

// Status returns the HTTP status code for a Kind, defaulting to 500 for an
// unrecognized kind rather than leaking an arbitrary zero value.
func Status(k Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the external error envelope: `{error, code, request_id}` per
// spec.md §7. Code is a stable machine-readable identifier distinct from
// Kind (multiple codes can share a kind, e.g. several validation reasons
// all surfacing as "validation"); Message is human-readable and may
// change across versions without breaking clients that only match on
// Code.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	RequestID string
}

// Envelope is the exact JSON shape returned to callers — Message is
// intentionally omitted from the wire envelope per spec.md §7 ("details
// only in server logs" for internal errors; other kinds still keep the
// message server-side to avoid prematurely committing message text to the
// stable wire contract).
type Envelope struct {
	Error     Kind   `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error with the given kind, stable code, human message
// and correlating request id.
func New(kind Kind, code, message, requestID string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, RequestID: requestID}
}

// Envelope renders the wire-visible JSON envelope for e.
func (e *Error) Envelope() Envelope {
	return Envelope{Error: e.Kind, Code: e.Code, RequestID: e.RequestID}
}

// Stable machine-readable codes referenced by the search pipeline and
// HTTP layer.
const (
	CodeInvalidQuery         = "INVALID_QUERY"
	CodeInvalidMode          = "INVALID_SEARCH_MODE"
	CodeRejectedMode         = "AGENTS_ONLY_MODE_REMOVED"
	CodeMissingCredential    = "MISSING_CREDENTIAL"
	CodeAmbiguousCredential  = "AMBIGUOUS_CREDENTIAL"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeUnknownAPIKey        = "UNKNOWN_API_KEY"
	CodeInactiveIdentity     = "INACTIVE_IDENTITY"
	CodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	CodeRequestTimeout       = "REQUEST_TIMEOUT"
	CodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	CodeIndexUnavailable     = "INDEX_UNAVAILABLE"
	CodeUnknownSearch        = "UNKNOWN_SEARCH_ID"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
)
