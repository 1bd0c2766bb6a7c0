// Package history is the append-only lifecycle log for timesheet entities.
//
// Domain services record events through the Recorder after their own
// persistence succeeds; read paths go through Query, which scopes every
// filter to the calling actor before touching the store. Rows are never
// updated or deleted by application code.
package history

import (
	"time"

	"timetrail/pkg/domain"
)

// TargetType is the kind of entity a history event refers to.
type TargetType string

const (
	TargetTimesheet         TargetType = "Timesheet"
	TargetTimesheetEntry    TargetType = "TimesheetEntry"
	TargetTimesheetApproval TargetType = "TimesheetApproval"
	TargetActionCode        TargetType = "ActionCode"
	TargetLeaveRequest      TargetType = "LeaveRequest"
)

// Valid reports whether t is one of the known target kinds.
func (t TargetType) Valid() bool {
	switch t {
	case TargetTimesheet, TargetTimesheetEntry, TargetTimesheetApproval,
		TargetActionCode, TargetLeaveRequest:
		return true
	}
	return false
}

// Action is a lifecycle action. The set is extensible: the log records what
// callers report and does not police workflow sequencing.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionSubmitted Action = "submitted"
	ActionApproved  Action = "approved"
	ActionRejected  Action = "rejected"
	ActionDeleted   Action = "deleted"
)

// Event is one immutable history row. Wire field names are fixed for API
// compatibility; IdempotencyKey stays server-side and is never serialized.
type Event struct {
	ID          domain.EventID   `json:"id"`
	CompanyID   domain.CompanyID `json:"companyId"`
	UserID      domain.UserID    `json:"userId"`
	TargetType  TargetType       `json:"targetType"`
	TargetID    string           `json:"targetId"`
	Action      Action           `json:"action"`
	ActorUserID domain.UserID    `json:"actorUserId"`
	Reason      string           `json:"reason,omitempty"`
	Diff        map[string]any   `json:"diff,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`

	IdempotencyKey string `json:"-"`
}

// Filter narrows a read. CompanyID is always set by the scoper, never taken
// from client input. Zero values mean "no constraint".
type Filter struct {
	CompanyID  domain.CompanyID
	TargetType TargetType
	TargetID   string
	UserID     domain.UserID
}

// Cursor is the decoded keyset position: the (occurredAt, id) pair of the
// last row of the previous page.
type Cursor struct {
	OccurredAt time.Time
	ID         domain.EventID
}

// Page is the read envelope. NextCursor is present only when another page
// may exist; clients must treat it as opaque.
type Page struct {
	Data       []Event `json:"data"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// RecordRequest carries one write attempt into the Recorder.
type RecordRequest struct {
	CompanyID   domain.CompanyID
	TargetType  TargetType
	TargetID    string
	Action      Action
	UserID      domain.UserID
	ActorUserID domain.UserID
	Reason      string
	Diff        map[string]any
	Metadata    map[string]any

	// IdempotencyKey dedupes retries of the same logical request. When
	// empty, IdempotencyNonce (if set) derives one; when both are empty the
	// write is not deduplicated.
	IdempotencyKey   string
	IdempotencyNonce string
}
