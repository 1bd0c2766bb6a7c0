// Package sentinel defines the errors stores report about resource state.
// Services translate them into coded domain errors at the boundary; input
// validation never uses these, that is pkg/domain-errors territory.
package sentinel

import "errors"

var (
	// ErrNotFound: the entity does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the entity is in the wrong state for the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: a backing service is temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)
