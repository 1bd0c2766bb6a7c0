package history

import "context"

// Store is the append-only persistence boundary. Implementations live in
// internal/history/store; the service packages only ever see this interface
// so tests can swap the in-memory store for PostgreSQL without rewiring.
type Store interface {
	// Insert appends one event. If the event carries a non-empty
	// idempotency key that is already present, implementations return the
	// previously stored row together with sentinel.ErrConflict instead of
	// creating a duplicate. The uniqueness check is enforced by the storage
	// layer itself so it holds under concurrent inserts from separate
	// processes.
	Insert(ctx context.Context, event Event) (*Event, error)

	// QueryPage returns up to limit rows matching filter, ordered by
	// (occurred_at DESC, id DESC), strictly after the cursor pair when one
	// is given. The bool result reports whether at least one more matching
	// row exists beyond the returned page.
	QueryPage(ctx context.Context, filter Filter, after *Cursor, limit int) ([]Event, bool, error)
}
