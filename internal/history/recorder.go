package history

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"timetrail/internal/history/metrics"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/platform/sentinel"
	"timetrail/pkg/requestcontext"
)

// IdempotencyCache is an optional read-through cache in front of the store's
// uniqueness constraint. It only ever short-circuits known replays; a miss
// or a cache failure falls through to the store, which stays authoritative.
type IdempotencyCache interface {
	Lookup(ctx context.Context, key string) (*Event, error)
	Save(ctx context.Context, key string, event Event) error
}

// StreamPublisher receives events after a first-time append. Implementations
// must not block the write path.
type StreamPublisher interface {
	Publish(event Event)
}

// Recorder is the single write entry point used by all domain services. Its
// side effects are limited to one append: it never touches other rows and
// never inspects the order of prior actions for a target. Sequencing is a
// domain-service concern, not the log's.
type Recorder struct {
	store   Store
	cache   IdempotencyCache
	stream  StreamPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithCache attaches a best-effort idempotency cache.
func WithCache(cache IdempotencyCache) RecorderOption {
	return func(r *Recorder) { r.cache = cache }
}

// WithStream attaches a stream publisher for recorded events.
func WithStream(stream StreamPublisher) RecorderOption {
	return func(r *Recorder) { r.stream = stream }
}

// WithRecorderMetrics attaches Prometheus metrics.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("timetrail/history"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record validates and appends one history event, resolving idempotency
// conflicts transparently: recording the "same" event twice is a successful
// no-op that returns the prior row, never an error.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*Event, error) {
	ctx, span := r.tracer.Start(ctx, "history.Record")
	defer span.End()
	start := time.Now()

	if err := validateRecordRequest(req); err != nil {
		return nil, err
	}

	key := ResolveIdempotencyKey(req)

	if key != "" && r.cache != nil {
		if cached, err := r.cache.Lookup(ctx, key); err == nil && cached != nil {
			r.metrics.RecordReplay()
			return cached, nil
		} else if err != nil {
			r.logger.WarnContext(ctx, "idempotency cache lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}

	event := Event{
		ID:             domain.NewEventID(),
		CompanyID:      req.CompanyID,
		UserID:         req.UserID,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
		Action:         req.Action,
		ActorUserID:    req.ActorUserID,
		Reason:         req.Reason,
		Diff:           req.Diff,
		Metadata:       req.Metadata,
		OccurredAt:     requestcontext.Now(ctx).UTC(),
		IdempotencyKey: key,
	}

	stored, err := r.store.Insert(ctx, event)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && stored != nil {
			// A concurrent or earlier write with the same key won the race.
			// Both callers see the winner's row; this is the defined success
			// path, not a failure.
			r.metrics.RecordReplay()
			r.saveToCache(ctx, key, *stored)
			return stored, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record history event")
	}

	r.metrics.RecordEvent(string(stored.Action))
	r.metrics.ObserveRecordDuration(time.Since(start).Seconds())
	r.saveToCache(ctx, key, *stored)
	if r.stream != nil {
		r.stream.Publish(*stored)
	}

	r.logger.InfoContext(ctx, "history event recorded",
		"request_id", requestcontext.RequestID(ctx),
		"event_id", stored.ID,
		"company_id", stored.CompanyID,
		"target_type", stored.TargetType,
		"target_id", stored.TargetID,
		"action", stored.Action,
	)
	return stored, nil
}

func (r *Recorder) saveToCache(ctx context.Context, key string, event Event) {
	if key == "" || r.cache == nil {
		return
	}
	if err := r.cache.Save(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "idempotency cache save failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func validateRecordRequest(req RecordRequest) error {
	var missing []string
	if req.CompanyID.IsNil() {
		missing = append(missing, "companyId")
	}
	if req.TargetType == "" {
		missing = append(missing, "targetType")
	}
	if strings.TrimSpace(req.TargetID) == "" {
		missing = append(missing, "targetId")
	}
	if req.Action == "" {
		missing = append(missing, "action")
	}
	if req.UserID.IsNil() {
		missing = append(missing, "userId")
	}
	if req.ActorUserID.IsNil() {
		missing = append(missing, "actorUserId")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if !req.TargetType.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown target type")
	}
	return nil
}
