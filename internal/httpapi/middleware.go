package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// requestIDFromContext returns the request id stashed by withMiddleware, or
// "" if none is present (e.g. in a unit test calling a handler directly).
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withMiddleware wraps a handler with the request-scoped concerns every
// endpoint needs: a stable request id (propagated from the client when
// given, generated otherwise) and a panic recovery net so one handler's
// bug surfaces as a 500 instead of taking the process down, matching the
// teacher's single Handler() entrypoint structure in internal/mcp/http.go.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		defer func() {
			if rec := recover(); rec != nil {
				s.telemetry.Logger.Error(ctx, "httpapi: handler panicked", "request_id", requestID, "panic", rec)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}
