package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrail/internal/history"
	"timetrail/internal/history/handler"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/requestcontext"
	"timetrail/pkg/testutil"
)

// fakeRecorder captures the record request and returns a canned event.
type fakeRecorder struct {
	lastReq history.RecordRequest
	event   *history.Event
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, req history.RecordRequest) (*history.Event, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.event != nil {
		return f.event, nil
	}
	return &history.Event{
		ID:         domain.NewEventID(),
		CompanyID:  req.CompanyID,
		UserID:     req.UserID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Action:     req.Action,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// fakeQuery records the arguments List/ForEntity were called with.
type fakeQuery struct {
	lastActor  domain.Actor
	lastFilter history.Filter
	lastCursor string
	lastLimit  int
	page       *history.Page
	err        error
}

func (f *fakeQuery) List(_ context.Context, actor domain.Actor, filter history.Filter, cursor string, limit int) (*history.Page, error) {
	f.lastActor, f.lastFilter, f.lastCursor, f.lastLimit = actor, filter, cursor, limit
	if f.err != nil {
		return nil, f.err
	}
	if f.page != nil {
		return f.page, nil
	}
	return &history.Page{}, nil
}

func (f *fakeQuery) ForEntity(ctx context.Context, actor domain.Actor, targetType history.TargetType, targetID string, cursor string, limit int) (*history.Page, error) {
	return f.List(ctx, actor, history.Filter{TargetType: targetType, TargetID: targetID}, cursor, limit)
}

func newRouter(recorder *fakeRecorder, query *fakeQuery) chi.Router {
	h := handler.New(recorder, query, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterInternal(r)
	return r
}

func TestHandleList(t *testing.T) {
	t.Run("requires an actor", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequest(t, http.MethodGet, "/history")

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("passes filters, cursor, and limit through", func(t *testing.T) {
		query := &fakeQuery{}
		router := newRouter(&fakeRecorder{}, query)
		actor := testutil.NewActor()
		subject := testutil.NewUserID()

		req := testutil.NewRequest(t, http.MethodGet,
			"/history?target_type=TimesheetEntry&target_id=entry-7&user_id="+subject.String()+"&cursor=abc&limit=10")
		rr := testutil.DoRequest(router, testutil.WithActor(req, actor))

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, actor.ID, query.lastActor.ID)
		assert.Equal(t, history.TargetTimesheetEntry, query.lastFilter.TargetType)
		assert.Equal(t, "entry-7", query.lastFilter.TargetID)
		assert.Equal(t, subject, query.lastFilter.UserID)
		assert.Equal(t, "abc", query.lastCursor)
		assert.Equal(t, 10, query.lastLimit)
	})

	t.Run("rejects an unparseable user filter", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequest(t, http.MethodGet, "/history?user_id=not-a-uuid")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("rejects a non-numeric limit", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequest(t, http.MethodGet, "/history?limit=abc")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("invalid cursor maps to 400", func(t *testing.T) {
		query := &fakeQuery{err: dErrors.New(dErrors.CodeInvalidCursor, "cursor is not valid")}
		router := newRouter(&fakeRecorder{}, query)
		req := testutil.NewRequest(t, http.MethodGet, "/history?cursor=garbage")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_cursor")
	})

	t.Run("empty page serializes data as an empty array", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequest(t, http.MethodGet, "/history")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusOK(t, rr)
		assert.JSONEq(t, `{"data":[]}`, rr.Body.String())
	})
}

func TestHandleForEntity(t *testing.T) {
	t.Run("pins the target from the path", func(t *testing.T) {
		query := &fakeQuery{}
		router := newRouter(&fakeRecorder{}, query)
		req := testutil.NewRequest(t, http.MethodGet, "/history/LeaveRequest/leave-3")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, history.TargetLeaveRequest, query.lastFilter.TargetType)
		assert.Equal(t, "leave-3", query.lastFilter.TargetID)
	})

	t.Run("rejects unknown target types", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequest(t, http.MethodGet, "/history/Payroll/p-1")

		rr := testutil.DoRequest(router, testutil.WithActor(req, testutil.NewActor()))

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestHandleRecord(t *testing.T) {
	actor := testutil.NewActor()

	validBody := func() map[string]any {
		return map[string]any{
			"companyId":   actor.CompanyID.String(),
			"userId":      actor.ID.String(),
			"actorUserId": actor.ID.String(),
			"targetType":  "TimesheetEntry",
			"targetId":    "entry-1",
			"action":      "submitted",
		}
	}

	t.Run("records and returns 201", func(t *testing.T) {
		recorder := &fakeRecorder{}
		router := newRouter(recorder, &fakeQuery{})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", validBody())

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, actor.CompanyID, recorder.lastReq.CompanyID)
		assert.Equal(t, history.ActionSubmitted, recorder.lastReq.Action)
	})

	t.Run("header idempotency key overrides the body", func(t *testing.T) {
		recorder := &fakeRecorder{}
		router := newRouter(recorder, &fakeQuery{})
		body := validBody()
		body["idempotencyKey"] = "body-key"
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", body)
		req.Header.Set("Idempotency-Key", "header-key")

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "header-key", recorder.lastReq.IdempotencyKey)
	})

	t.Run("invalid ids fail before the recorder", func(t *testing.T) {
		recorder := &fakeRecorder{}
		router := newRouter(recorder, &fakeQuery{})
		body := validBody()
		body["companyId"] = "not-a-uuid"
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", body)

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		assert.Empty(t, recorder.lastReq.TargetID, "the recorder must not be reached")
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		router := newRouter(&fakeRecorder{}, &fakeQuery{})
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/history/events", "{broken")

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("enriches metadata from the request context", func(t *testing.T) {
		recorder := &fakeRecorder{}
		router := newRouter(recorder, &fakeQuery{})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", validBody())
		ctx := requestcontext.WithServiceName(req.Context(), "timesheet-api")
		ctx = requestcontext.WithRequestID(ctx, "req-42")
		req = req.WithContext(ctx)

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		require.NotNil(t, recorder.lastReq.Metadata)
		assert.Equal(t, "timesheet-api", recorder.lastReq.Metadata["recordedBy"])
		assert.Equal(t, "req-42", recorder.lastReq.Metadata["requestId"])
	})

	t.Run("caller metadata is not overwritten", func(t *testing.T) {
		recorder := &fakeRecorder{}
		router := newRouter(recorder, &fakeQuery{})
		body := validBody()
		body["metadata"] = map[string]any{"recordedBy": "origin-service"}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", body)
		req = req.WithContext(requestcontext.WithServiceName(req.Context(), "proxy"))

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "origin-service", recorder.lastReq.Metadata["recordedBy"])
	})

	t.Run("recorder validation errors pass through", func(t *testing.T) {
		recorder := &fakeRecorder{err: dErrors.New(dErrors.CodeValidation, "unknown target type")}
		router := newRouter(recorder, &fakeQuery{})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", validBody())

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("storage failures stay opaque", func(t *testing.T) {
		recorder := &fakeRecorder{err: dErrors.New(dErrors.CodeInternal, "pg: connection refused")}
		router := newRouter(recorder, &fakeQuery{})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/history/events", validBody())

		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		errResp := testutil.UnmarshalErrorResponse(t, rr)
		assert.Empty(t, errResp["error_description"], "internal detail must not leak")
	})
}
