package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected a write.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnavailable indicates the store could not be reached in time.
	ErrUnavailable = errors.New("repository: store unavailable")
	// ErrInvalidArgument indicates the caller supplied an unusable value.
	ErrInvalidArgument = errors.New("repository: invalid argument")
)
