package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"timetrail/internal/history"
	"timetrail/pkg/domain"
	"timetrail/pkg/platform/sentinel"
)

// Store is an in-memory history store for unit tests and local runs. The
// mutex plays the role PostgreSQL's unique index plays in production: two
// concurrent inserts with the same idempotency key serialize here and
// exactly one wins.
type Store struct {
	mu     sync.RWMutex
	events []history.Event
	byKey  map[string]int
}

var _ history.Store = (*Store)(nil)

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{byKey: make(map[string]int)}
}

func (s *Store) Insert(_ context.Context, event history.Event) (*history.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.IdempotencyKey != "" {
		if idx, ok := s.byKey[event.IdempotencyKey]; ok {
			existing := cloneEvent(s.events[idx])
			return &existing, sentinel.ErrConflict
		}
	}

	stored := cloneEvent(event)
	s.events = append(s.events, stored)
	if stored.IdempotencyKey != "" {
		s.byKey[stored.IdempotencyKey] = len(s.events) - 1
	}
	out := cloneEvent(stored)
	return &out, nil
}

func (s *Store) QueryPage(_ context.Context, filter history.Filter, after *history.Cursor, limit int) ([]history.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]history.Event, 0, len(s.events))
	for _, event := range s.events {
		if !matches(event, filter) {
			continue
		}
		if after != nil && !before(event, *after) {
			continue
		}
		matched = append(matched, cloneEvent(event))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return compareIDs(matched[i].ID, matched[j].ID) > 0
	})

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

// Len reports the number of stored events. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// CountByIdempotencyKey reports how many stored rows carry the key. Test helper.
func (s *Store) CountByIdempotencyKey(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if event.IdempotencyKey == key {
			count++
		}
	}
	return count
}

func matches(event history.Event, filter history.Filter) bool {
	if !filter.CompanyID.IsNil() && event.CompanyID != filter.CompanyID {
		return false
	}
	if filter.TargetType != "" && event.TargetType != filter.TargetType {
		return false
	}
	if filter.TargetID != "" && event.TargetID != filter.TargetID {
		return false
	}
	if !filter.UserID.IsNil() && event.UserID != filter.UserID {
		return false
	}
	return true
}

// before reports whether event sorts strictly after the cursor position in
// (occurred_at DESC, id DESC) order, i.e. is older than the cursor pair.
func before(event history.Event, c history.Cursor) bool {
	if event.OccurredAt.Before(c.OccurredAt) {
		return true
	}
	if event.OccurredAt.Equal(c.OccurredAt) {
		return compareIDs(event.ID, c.ID) < 0
	}
	return false
}

func compareIDs(a, b domain.EventID) int {
	ua, ub := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(ua[:], ub[:])
}

func cloneEvent(event history.Event) history.Event {
	out := event
	out.Diff = cloneMap(event.Diff)
	out.Metadata = cloneMap(event.Metadata)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
