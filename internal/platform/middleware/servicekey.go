package middleware

import (
	"log/slog"
	"net/http"

	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/platform/httputil"
	"timetrail/pkg/requestcontext"
	"timetrail/pkg/secrets"
)

// ServiceKeyRegistry resolves a service name to its stored API key hash.
type ServiceKeyRegistry interface {
	KeyHash(serviceName string) (string, bool)
}

// StaticServiceKeys is a registry backed by a fixed name-to-hash map, loaded
// from configuration at startup.
type StaticServiceKeys map[string]string

func (s StaticServiceKeys) KeyHash(serviceName string) (string, bool) {
	hash, ok := s[serviceName]
	return hash, ok
}

// RequireServiceKey authenticates service-to-service calls. The caller sends
// its name in X-Service-Name and its API key in X-Service-Key; the key is
// checked against the registered bcrypt hash. The service name ends up in the
// request context for audit enrichment.
func RequireServiceKey(registry ServiceKeyRegistry, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			serviceName := r.Header.Get("X-Service-Name")
			serviceKey := r.Header.Get("X-Service-Key")
			if serviceName == "" || serviceKey == "" {
				logger.WarnContext(ctx, "service auth - missing credentials",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "service credentials required"))
				return
			}

			hash, ok := registry.KeyHash(serviceName)
			if !ok {
				logger.WarnContext(ctx, "service auth - unknown service",
					"request_id", requestID,
					"service", serviceName,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unknown service"))
				return
			}

			if err := secrets.Verify(serviceKey, hash); err != nil {
				logger.WarnContext(ctx, "service auth - key mismatch",
					"request_id", requestID,
					"service", serviceName,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid service key"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithServiceName(ctx, serviceName)))
		})
	}
}
