package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"timetrail/pkg/domain"
	"timetrail/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestID attaches a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request-scoped clock, letting tests control the
// occurred-at timestamps of recorded events.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// Context builds a plain context carrying an actor, for service-level tests
// that skip the HTTP layer.
func Context(actor domain.Actor) context.Context {
	return requestcontext.WithActor(context.Background(), actor)
}

// ContextAt builds a context with an actor and a pinned clock.
func ContextAt(actor domain.Actor, t time.Time) context.Context {
	return requestcontext.WithTime(Context(actor), t)
}

// NewActor builds a throwaway actor in its own company.
func NewActor(permissions ...string) domain.Actor {
	return domain.NewActor(NewUserID(), NewCompanyID(), permissions...)
}

// NewUserID returns a fresh random user ID.
func NewUserID() domain.UserID {
	return domain.UserID(uuid.New())
}

// NewCompanyID returns a fresh random company ID.
func NewCompanyID() domain.CompanyID {
	return domain.CompanyID(uuid.New())
}
