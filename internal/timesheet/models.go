// Package timesheet is a thin domain service for timesheet entries,
// approvals, and leave requests. Its job here is the write path: persist the
// change, then append the matching lifecycle event to the history log. Full
// timesheet CRUD lives in the upstream HR services.
package timesheet

import (
	"time"

	"timetrail/pkg/domain"
)

// EntryStatus tracks the lifecycle of a timesheet entry.
type EntryStatus string

const (
	StatusDraft     EntryStatus = "draft"
	StatusSubmitted EntryStatus = "submitted"
	StatusApproved  EntryStatus = "approved"
	StatusRejected  EntryStatus = "rejected"
)

// Entry is a single day's worked-hours record for one user.
type Entry struct {
	ID         domain.EntryID
	CompanyID  domain.CompanyID
	UserID     domain.UserID
	Date       time.Time
	Hours      float64
	ActionCode string
	Note       string
	Status     EntryStatus
	UpdatedAt  time.Time
}

// cloneEntry returns a copy so callers never hold a pointer into the
// service's state.
func cloneEntry(e *Entry) *Entry {
	out := *e
	return &out
}

// LeaveRequest is a pending absence request awaiting approval.
type LeaveRequest struct {
	ID        domain.EntryID
	CompanyID domain.CompanyID
	UserID    domain.UserID
	From      time.Time
	To        time.Time
	Kind      string
	Status    EntryStatus
}

// CreateEntryRequest carries a new entry from the handler into the service.
type CreateEntryRequest struct {
	CompanyID  domain.CompanyID
	UserID     domain.UserID
	Date       time.Time
	Hours      float64
	ActionCode string
	Note       string
}

// UpdateEntryRequest changes hours, action code, or note on a draft entry.
type UpdateEntryRequest struct {
	EntryID    domain.EntryID
	Hours      *float64
	ActionCode *string
	Note       *string
}
