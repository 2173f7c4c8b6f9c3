package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a thread does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("thread not found")

	// ErrConflict is returned when a thread with the given ID already exists.
	ErrConflict = errors.New("thread already exists")
)
