package domain

import (
	"github.com/google/uuid"

	dErrors "timetrail/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. A CompanyID can
// never be passed where a UserID is expected, which keeps tenant scoping
// explicit throughout the call graph.
type (
	// EventID identifies a history event row.
	EventID uuid.UUID
	// CompanyID identifies a tenant. Every row and query is scoped to one.
	CompanyID uuid.UUID
	// UserID identifies a person, whether subject or actor.
	UserID uuid.UUID
	// EntryID identifies a timesheet entry or leave request row.
	EntryID uuid.UUID
)

func (id EventID) String() string   { return uuid.UUID(id).String() }
func (id CompanyID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id EntryID) String() string   { return uuid.UUID(id).String() }

func (id EventID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewEntryID returns a fresh timesheet entry identifier.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// NewEventID returns a time-ordered (UUIDv7) event identifier. Time ordering
// makes (occurred_at, id) a total order for keyset pagination even when two
// events share a timestamp.
func NewEventID() EventID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source fails; fall back to v4
		// rather than panicking in the write path.
		return EventID(uuid.New())
	}
	return EventID(id)
}

// parseID enforces the trust-boundary invariant: IDs must be valid, non-empty,
// non-nil UUIDs. All typed parsers share it so behavior stays consistent.
func parseID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return parsed, nil
}

// ParseEventID parses and validates an event ID from untrusted input.
func ParseEventID(raw string) (EventID, error) {
	parsed, err := parseID(raw, "event")
	if err != nil {
		return EventID{}, err
	}
	return EventID(parsed), nil
}

// ParseCompanyID parses and validates a company ID from untrusted input.
func ParseCompanyID(raw string) (CompanyID, error) {
	parsed, err := parseID(raw, "company")
	if err != nil {
		return CompanyID{}, err
	}
	return CompanyID(parsed), nil
}

// ParseUserID parses and validates a user ID from untrusted input.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseID(raw, "user")
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseEntryID parses and validates a timesheet entry ID from untrusted input.
func ParseEntryID(raw string) (EntryID, error) {
	parsed, err := parseID(raw, "entry")
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(parsed), nil
}
