package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/logger"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	SessionIDHeader = "X-Session-ID"
)

// RequestID propagates the caller's X-Request-ID, or mints a UUID, and
// stores it with any X-Session-ID in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		if sid := r.Header.Get(SessionIDHeader); sid != "" {
			ctx = logger.WithSessionID(ctx, sid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
