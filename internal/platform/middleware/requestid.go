package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"timetrail/pkg/requestcontext"
)

// RequestID assigns every request an identifier for log correlation. An
// inbound X-Request-ID from a trusted proxy is kept; otherwise one is minted.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
