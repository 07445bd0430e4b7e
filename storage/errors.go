package storage

import "errors"

// Common storage errors
var (
	// ErrNotFound indicates that no record exists for the requested (type, id)
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates that a local insert collided with an existing record
	ErrAlreadyExists = errors.New("record already exists")

	// ErrIntegrityViolation indicates that a record and its change-log rows
	// disagree in a way the atomic-commit invariant should have made impossible.
	// It signals a storage-layer bug, not a recoverable caller error.
	ErrIntegrityViolation = errors.New("record/change-log integrity violation")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
