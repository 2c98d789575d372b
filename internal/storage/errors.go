package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when an append does not extend the stored
	// chain head, either because another writer appended first or because
	// the caller started from a stale copy.
	ErrConflict = errors.New("storage: chain head moved")
	// ErrExists is returned when creating a record whose ID is taken.
	ErrExists = errors.New("storage: record already exists")
)
