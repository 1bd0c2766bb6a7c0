package history

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"timetrail/internal/history/metrics"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/requestcontext"
)

// Page size bounds. Out-of-range limits are clamped, not rejected.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Query is the public read surface: it composes the scoper and the store
// into cursor-paginated, access-scoped reads.
type Query struct {
	store   Store
	scoper  *Scoper
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// QueryOption customizes a Query.
type QueryOption func(*Query)

// WithQueryMetrics attaches Prometheus metrics.
func WithQueryMetrics(m *metrics.Metrics) QueryOption {
	return func(q *Query) { q.metrics = m }
}

// NewQuery constructs the read service.
func NewQuery(store Store, scoper *Scoper, logger *slog.Logger, opts ...QueryOption) *Query {
	q := &Query{
		store:  store,
		scoper: scoper,
		logger: logger,
		tracer: otel.Tracer("timetrail/history"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// List returns one page of history visible to the actor. The cursor is
// opaque; a malformed one fails with CodeInvalidCursor rather than being
// treated as "start over". Rows inserted after a page was fetched never
// appear in later pages of the same traversal because pagination is keyset
// based; they only affect future first-page reads.
func (q *Query) List(ctx context.Context, actor domain.Actor, filter Filter, cursor string, limit int) (*Page, error) {
	ctx, span := q.tracer.Start(ctx, "history.List")
	defer span.End()

	after, err := DecodeCursor(cursor)
	if err != nil {
		q.metrics.RecordInvalidCursor()
		q.logger.WarnContext(ctx, "rejected malformed history cursor",
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", actor.ID,
		)
		return nil, err
	}

	effective := q.scoper.Scope(actor, filter)

	rows, hasMore, err := q.store.QueryPage(ctx, effective, after, clampLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query history")
	}

	page := &Page{Data: rows}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = EncodeCursor(Cursor{OccurredAt: last.OccurredAt, ID: last.ID})
	}
	q.metrics.RecordPage()
	return page, nil
}

// ForEntity lists the history of one entity: a convenience wrapper that
// pins targetType/targetId and delegates to List.
func (q *Query) ForEntity(ctx context.Context, actor domain.Actor, targetType TargetType, targetID string, cursor string, limit int) (*Page, error) {
	return q.List(ctx, actor, Filter{TargetType: targetType, TargetID: targetID}, cursor, limit)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
