package handler

import (
	"timetrail/internal/history"
	"timetrail/pkg/domain"
	dErrors "timetrail/pkg/domain-errors"
)

// RecordEventRequest is the body of POST /history/events. Domain services
// call this endpoint after their own persistence succeeds.
type RecordEventRequest struct {
	CompanyID   string         `json:"companyId"`
	UserID      string         `json:"userId"`
	ActorUserID string         `json:"actorUserId"`
	TargetType  string         `json:"targetType"`
	TargetID    string         `json:"targetId"`
	Action      string         `json:"action"`
	Reason      string         `json:"reason,omitempty"`
	Diff        map[string]any `json:"diff,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	IdempotencyKey   string `json:"idempotencyKey,omitempty"`
	IdempotencyNonce string `json:"idempotencyNonce,omitempty"`
}

// ToRecordRequest parses the wire request into a domain record request.
// ID parsing failures surface as validation errors before any storage
// access; field-presence validation itself belongs to the Recorder.
func (r RecordEventRequest) ToRecordRequest() (history.RecordRequest, error) {
	out := history.RecordRequest{
		TargetType:       history.TargetType(r.TargetType),
		TargetID:         r.TargetID,
		Action:           history.Action(r.Action),
		Reason:           r.Reason,
		Diff:             r.Diff,
		Metadata:         r.Metadata,
		IdempotencyKey:   r.IdempotencyKey,
		IdempotencyNonce: r.IdempotencyNonce,
	}

	companyID, err := domain.ParseCompanyID(r.CompanyID)
	if err != nil {
		return history.RecordRequest{}, dErrors.New(dErrors.CodeValidation, "companyId must be a valid id")
	}
	out.CompanyID = companyID

	userID, err := domain.ParseUserID(r.UserID)
	if err != nil {
		return history.RecordRequest{}, dErrors.New(dErrors.CodeValidation, "userId must be a valid id")
	}
	out.UserID = userID

	actorUserID, err := domain.ParseUserID(r.ActorUserID)
	if err != nil {
		return history.RecordRequest{}, dErrors.New(dErrors.CodeValidation, "actorUserId must be a valid id")
	}
	out.ActorUserID = actorUserID

	return out, nil
}

// listParams captures the query-string filter of GET /history.
type listParams struct {
	TargetType string
	TargetID   string
	UserID     string
	Cursor     string
	Limit      int
}

// toFilter builds the requested (pre-scoping) filter. The scoper decides
// what of it the actor may actually see; an unparseable userId is treated
// as a validation error rather than silently ignored.
func (p listParams) toFilter() (history.Filter, error) {
	filter := history.Filter{
		TargetType: history.TargetType(p.TargetType),
		TargetID:   p.TargetID,
	}
	if p.UserID != "" {
		userID, err := domain.ParseUserID(p.UserID)
		if err != nil {
			return history.Filter{}, dErrors.New(dErrors.CodeBadRequest, "user_id must be a valid id")
		}
		filter.UserID = userID
	}
	return filter, nil
}
