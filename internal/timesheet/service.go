package timesheet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"timetrail/internal/history"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/requestcontext"
)

// Recorder is the history write contract this service depends on.
type Recorder interface {
	Record(ctx context.Context, req history.RecordRequest) (*history.Event, error)
}

// Service owns timesheet entry and leave request lifecycle transitions.
// Every successful state change appends one history event; recording failures
// roll nothing back since the history log is the system of record for audit,
// not for timesheet state.
type Service struct {
	recorder Recorder
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[domain.EntryID]*Entry
	leaves  map[domain.EntryID]*LeaveRequest
}

// NewService constructs the timesheet service.
func NewService(recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		recorder: recorder,
		logger:   logger,
		entries:  make(map[domain.EntryID]*Entry),
		leaves:   make(map[domain.EntryID]*LeaveRequest),
	}
}

// CreateEntry registers a new draft entry and records its creation.
func (s *Service) CreateEntry(ctx context.Context, actor domain.Actor, req CreateEntryRequest) (*Entry, error) {
	if req.Hours <= 0 || req.Hours > 24 {
		return nil, dErrors.New(dErrors.CodeValidation, "hours must be between 0 and 24")
	}
	if req.CompanyID != actor.CompanyID {
		return nil, dErrors.New(dErrors.CodeForbidden, "entry must belong to the actor's company")
	}

	now := requestcontext.Now(ctx).UTC()
	entry := &Entry{
		ID:         domain.NewEntryID(),
		CompanyID:  req.CompanyID,
		UserID:     req.UserID,
		Date:       req.Date,
		Hours:      req.Hours,
		ActionCode: req.ActionCode,
		Note:       req.Note,
		Status:     StatusDraft,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()

	s.record(ctx, actor, history.RecordRequest{
		CompanyID:   entry.CompanyID,
		TargetType:  history.TargetTimesheetEntry,
		TargetID:    entry.ID.String(),
		Action:      history.ActionCreated,
		UserID:      entry.UserID,
		ActorUserID: actor.ID,
		Diff: map[string]any{
			"date":       entry.Date.Format("2006-01-02"),
			"hours":      entry.Hours,
			"actionCode": entry.ActionCode,
		},
	})

	return cloneEntry(entry), nil
}

// UpdateEntry changes fields on a draft entry and records a field-level diff.
func (s *Service) UpdateEntry(ctx context.Context, actor domain.Actor, req UpdateEntryRequest) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lockedEntry(actor, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusDraft && entry.Status != StatusRejected {
		return nil, dErrors.New(dErrors.CodeConflict, "only draft or rejected entries can be updated")
	}

	diff := map[string]any{}
	if req.Hours != nil && *req.Hours != entry.Hours {
		if *req.Hours <= 0 || *req.Hours > 24 {
			return nil, dErrors.New(dErrors.CodeValidation, "hours must be between 0 and 24")
		}
		diff["hours"] = map[string]any{"from": entry.Hours, "to": *req.Hours}
		entry.Hours = *req.Hours
	}
	if req.ActionCode != nil && *req.ActionCode != entry.ActionCode {
		diff["actionCode"] = map[string]any{"from": entry.ActionCode, "to": *req.ActionCode}
		entry.ActionCode = *req.ActionCode
	}
	if req.Note != nil && *req.Note != entry.Note {
		diff["note"] = map[string]any{"from": entry.Note, "to": *req.Note}
		entry.Note = *req.Note
	}
	if len(diff) == 0 {
		return cloneEntry(entry), nil
	}
	entry.UpdatedAt = requestcontext.Now(ctx).UTC()

	s.record(ctx, actor, history.RecordRequest{
		CompanyID:   entry.CompanyID,
		TargetType:  history.TargetTimesheetEntry,
		TargetID:    entry.ID.String(),
		Action:      history.ActionUpdated,
		UserID:      entry.UserID,
		ActorUserID: actor.ID,
		Diff:        diff,
	})

	return cloneEntry(entry), nil
}

// SubmitEntry moves a draft entry into review. Submission is one-shot per
// entry, so the history write carries a deterministic idempotency key and a
// retried submit never duplicates the event.
func (s *Service) SubmitEntry(ctx context.Context, actor domain.Actor, entryID domain.EntryID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lockedEntry(actor, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusDraft && entry.Status != StatusRejected {
		return nil, dErrors.New(dErrors.CodeConflict, "entry has already been submitted")
	}
	entry.Status = StatusSubmitted
	entry.UpdatedAt = requestcontext.Now(ctx).UTC()

	s.record(ctx, actor, history.RecordRequest{
		CompanyID:      entry.CompanyID,
		TargetType:     history.TargetTimesheetEntry,
		TargetID:       entry.ID.String(),
		Action:         history.ActionSubmitted,
		UserID:         entry.UserID,
		ActorUserID:    actor.ID,
		IdempotencyKey: transitionKey(entry.ID, history.ActionSubmitted),
	})

	return cloneEntry(entry), nil
}

// ApproveEntry approves a submitted entry. The approver's reason text is
// recorded exactly as given.
func (s *Service) ApproveEntry(ctx context.Context, actor domain.Actor, entryID domain.EntryID, reason string) (*Entry, error) {
	return s.review(ctx, actor, entryID, history.ActionApproved, StatusApproved, reason)
}

// RejectEntry rejects a submitted entry with a verbatim reason.
func (s *Service) RejectEntry(ctx context.Context, actor domain.Actor, entryID domain.EntryID, reason string) (*Entry, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}
	return s.review(ctx, actor, entryID, history.ActionRejected, StatusRejected, reason)
}

func (s *Service) review(ctx context.Context, actor domain.Actor, entryID domain.EntryID, action history.Action, status EntryStatus, reason string) (*Entry, error) {
	if !actor.Can(domain.PermApproveTimesheets) {
		return nil, dErrors.New(dErrors.CodeForbidden, "approval permission required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lockedEntry(actor, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusSubmitted {
		return nil, dErrors.New(dErrors.CodeConflict, "entry is not awaiting review")
	}
	entry.Status = status
	entry.UpdatedAt = requestcontext.Now(ctx).UTC()

	s.record(ctx, actor, history.RecordRequest{
		CompanyID:      entry.CompanyID,
		TargetType:     history.TargetTimesheetApproval,
		TargetID:       entry.ID.String(),
		Action:         action,
		UserID:         entry.UserID,
		ActorUserID:    actor.ID,
		Reason:         reason,
		IdempotencyKey: transitionKey(entry.ID, action),
	})

	return cloneEntry(entry), nil
}

// SubmitLeaveRequest files a new leave request and records it.
func (s *Service) SubmitLeaveRequest(ctx context.Context, actor domain.Actor, req LeaveRequest) (*LeaveRequest, error) {
	if req.To.Before(req.From) {
		return nil, dErrors.New(dErrors.CodeValidation, "leave period end must not precede its start")
	}
	if req.CompanyID != actor.CompanyID {
		return nil, dErrors.New(dErrors.CodeForbidden, "leave request must belong to the actor's company")
	}

	leave := &LeaveRequest{
		ID:        domain.NewEntryID(),
		CompanyID: req.CompanyID,
		UserID:    req.UserID,
		From:      req.From,
		To:        req.To,
		Kind:      req.Kind,
		Status:    StatusSubmitted,
	}

	s.mu.Lock()
	s.leaves[leave.ID] = leave
	s.mu.Unlock()

	s.record(ctx, actor, history.RecordRequest{
		CompanyID:   leave.CompanyID,
		TargetType:  history.TargetLeaveRequest,
		TargetID:    leave.ID.String(),
		Action:      history.ActionSubmitted,
		UserID:      leave.UserID,
		ActorUserID: actor.ID,
		Diff: map[string]any{
			"from": leave.From.Format("2006-01-02"),
			"to":   leave.To.Format("2006-01-02"),
			"kind": leave.Kind,
		},
	})

	return &LeaveRequest{
		ID: leave.ID, CompanyID: leave.CompanyID, UserID: leave.UserID,
		From: leave.From, To: leave.To, Kind: leave.Kind, Status: leave.Status,
	}, nil
}

// Entry returns a copy of the stored entry, tenant-checked against the actor.
func (s *Service) Entry(ctx context.Context, actor domain.Actor, entryID domain.EntryID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.lockedEntry(actor, entryID)
	if err != nil {
		return nil, err
	}
	return cloneEntry(entry), nil
}

// lockedEntry requires s.mu to be held.
func (s *Service) lockedEntry(actor domain.Actor, entryID domain.EntryID) (*Entry, error) {
	entry, ok := s.entries[entryID]
	if !ok || entry.CompanyID != actor.CompanyID {
		// Cross-tenant lookups are indistinguishable from missing rows.
		return nil, dErrors.New(dErrors.CodeNotFound, "timesheet entry not found")
	}
	return entry, nil
}

func (s *Service) record(ctx context.Context, actor domain.Actor, req history.RecordRequest) {
	if _, err := s.recorder.Record(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to record timesheet history event",
			"request_id", requestcontext.RequestID(ctx),
			"target_type", req.TargetType,
			"target_id", req.TargetID,
			"action", req.Action,
			"actor_user_id", actor.ID,
			"error", err,
		)
	}
}

// transitionKey dedupes one-shot lifecycle transitions: retrying a submit or
// an approval for the same entry replays the original event.
func transitionKey(entryID domain.EntryID, action history.Action) string {
	return fmt.Sprintf("timesheet:%s:%s", entryID, action)
}
