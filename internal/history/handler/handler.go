package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timetrail/internal/history"
	"timetrail/internal/platform/device"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/platform/httputil"
	"timetrail/pkg/requestcontext"
)

// Recorder is the write side consumed by the record endpoint.
type Recorder interface {
	Record(ctx context.Context, req history.RecordRequest) (*history.Event, error)
}

// Query is the read side consumed by the list endpoints.
type Query interface {
	List(ctx context.Context, actor domain.Actor, filter history.Filter, cursor string, limit int) (*history.Page, error)
	ForEntity(ctx context.Context, actor domain.Actor, targetType history.TargetType, targetID string, cursor string, limit int) (*history.Page, error)
}

// Handler wires history endpoints to the recorder and query services.
type Handler struct {
	recorder Recorder
	query    Query
	logger   *slog.Logger
}

// New constructs a history handler with its dependencies.
func New(recorder Recorder, query Query, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, query: query, logger: logger}
}

// Register mounts the read endpoints. The record endpoint is mounted
// separately under the service-key middleware (see RegisterInternal).
func (h *Handler) Register(r chi.Router) {
	r.Get("/history", h.HandleList)
	r.Get("/history/{targetType}/{targetID}", h.HandleForEntity)
}

// RegisterInternal mounts the service-to-service write endpoint.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post("/history/events", h.HandleRecord)
}

// HandleList handles GET /history.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := params.toFilter()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.query.List(ctx, actor, filter, params.Cursor, params.Limit)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writePage(w, page)
}

// HandleForEntity handles GET /history/{targetType}/{targetID}.
func (h *Handler) HandleForEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	targetType := history.TargetType(chi.URLParam(r, "targetType"))
	if !targetType.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown target type"))
		return
	}
	targetID := chi.URLParam(r, "targetID")

	params, err := parseListParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.query.ForEntity(ctx, actor, targetType, targetID, params.Cursor, params.Limit)
	if err != nil {
		h.writeQueryError(w, r, err)
		return
	}
	writePage(w, page)
}

// HandleRecord handles POST /history/events. The endpoint sits behind the
// service-key middleware: only registered domain services can append.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[RecordEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	// The header wins over the body so HTTP-level retry machinery can set
	// the key without rebuilding the payload.
	if headerKey := r.Header.Get("Idempotency-Key"); headerKey != "" {
		req.IdempotencyKey = headerKey
	}

	recordReq, err := req.ToRecordRequest()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recordReq.Metadata = enrichMetadata(ctx, recordReq.Metadata)

	event, err := h.recorder.Record(ctx, recordReq)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "failed to record history event",
				"request_id", requestID,
				"target_type", req.TargetType,
				"target_id", req.TargetID,
				"action", req.Action,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "history event accepted",
		"request_id", requestID,
		"event_id", event.ID,
		"service", requestcontext.ServiceName(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, event)
}

// enrichMetadata adds transport context (calling service, request id, client
// device) without overwriting anything the caller supplied. The core stores
// the map verbatim either way.
func enrichMetadata(ctx context.Context, metadata map[string]any) map[string]any {
	extra := map[string]any{}
	if service := requestcontext.ServiceName(ctx); service != "" {
		extra["recordedBy"] = service
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		extra["requestId"] = requestID
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		extra["client"] = device.ParseUserAgent(ua)
	}
	if len(extra) == 0 {
		return metadata
	}
	if metadata == nil {
		metadata = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		if _, exists := metadata[k]; !exists {
			metadata[k] = v
		}
	}
	return metadata
}

func (h *Handler) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if !dErrors.HasCode(err, dErrors.CodeInvalidCursor) {
		h.logger.ErrorContext(r.Context(), "history query failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func writePage(w http.ResponseWriter, page *history.Page) {
	if page.Data == nil {
		page.Data = []history.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func parseListParams(r *http.Request) (listParams, error) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			// Out-of-range limits are clamped by the query service, but a
			// non-numeric value is a malformed request.
			return listParams{}, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
		limit = parsed
	}
	return listParams{
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
		UserID:     q.Get("user_id"),
		Cursor:     q.Get("cursor"),
		Limit:      limit,
	}, nil
}
