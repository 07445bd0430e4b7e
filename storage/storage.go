// Package storage defines the persistence contract shared by the record
// store and the local change log. A backend keeps two durable structures:
// one keyed by (type, id) holding current resource content, and one
// append-only log keyed by a monotonically increasing sequence id.
package storage

import (
	"context"

	"github.com/medisync/healthstore/models"
)

//go:generate moq -out storage_mock.go . Storage

// Tx is the view of one (type, id) inside a write transaction opened by
// Mutate. Everything done through a Tx commits or rolls back as one unit:
// a record write and its change-log append are never durable separately.
type Tx interface {
	// Record returns the current content for the key, or ok=false if absent
	Record() (content []byte, ok bool, err error)

	// PutRecord creates or overwrites the record content for the key
	PutRecord(content []byte) error

	// DeleteRecord removes the record for the key; absent record is a no-op
	DeleteRecord() error

	// LiveEntries returns the not-yet-acknowledged change-log rows for the
	// key, ordered by sequence id
	LiveEntries() ([]models.LocalChangeEntry, error)

	// Append adds a change-log row for the key and returns its sequence id
	Append(kind models.ChangeKind, payload []byte) (uint64, error)

	// Purge physically deletes the given change-log rows of the key
	Purge(seqIDs []uint64) error
}

// Storage is the persistence backend for records and the local change log
type Storage interface {
	// Mutate runs fn inside a single write transaction scoped to (type, id).
	// If fn returns an error nothing is persisted. Writes to the same key
	// are serialized by the backend.
	Mutate(ctx context.Context, resourceType, resourceID string, fn func(Tx) error) error

	// GetRecord returns current content for the key.
	// Returns ErrNotFound if the record is absent.
	GetRecord(ctx context.Context, resourceType, resourceID string) ([]byte, error)

	// AllLiveEntries returns a snapshot of every live change-log row,
	// ordered by sequence id. Rows appended after the call are not included.
	AllLiveEntries(ctx context.Context) ([]models.LocalChangeEntry, error)

	// DeleteEntries physically deletes the given change-log rows.
	// Ids that no longer exist are skipped: the operation is idempotent.
	DeleteEntries(ctx context.Context, seqIDs []uint64) error

	// Clear removes all records and change-log rows.
	// Used for testing and full re-hydration.
	Clear(ctx context.Context) error

	// Close releases the underlying database
	Close() error
}
