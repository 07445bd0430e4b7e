// Package healthstore is the persistence and change-tracking layer of an
// offline-first health-record store. It keeps the current content of each
// resource in a record store and separately tracks every local mutation in
// an append-only change log, so that a sync client can later replay the
// squashed changes against a remote server and acknowledge exactly the log
// rows it uploaded.
package healthstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/medisync/healthstore/changelog"
	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/patch"
	"github.com/medisync/healthstore/registry"
	"github.com/medisync/healthstore/storage"
)

// Store exposes the record-store and change-log API on top of a storage
// backend. Every local mutation commits the record write and its log append
// as one atomic transaction; remote-origin writes never touch the log.
type Store struct {
	storage  storage.Storage
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a new Store on top of the given backend and type registry
func New(st storage.Storage, reg *registry.Registry, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage:  st,
		registry: reg,
		logger:   logger,
	}
}

// InsertLocal creates a record for a locally authored resource and enqueues
// a pending INSERT carrying its full content.
//
// Fails with storage.ErrAlreadyExists if a record for (type, id) exists, or
// if the id still has an unacknowledged pending DELETE: re-creating a
// resource before the delete reached the server is rejected rather than
// spliced into the old log lineage.
func (s *Store) InsertLocal(ctx context.Context, res *models.Resource) error {
	if _, err := s.registry.Resolve(res.Type); err != nil {
		return err
	}

	// Генерируем ID если не задан
	if res.ID == "" {
		res.ID = uuid.New().String()
	}

	content, err := patch.Canonical(res.Content)
	if err != nil {
		return fmt.Errorf("failed to canonicalize content: %w", err)
	}

	err = s.storage.Mutate(ctx, res.Type, res.ID, func(tx storage.Tx) error {
		_, exists, err := tx.Record()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("insert %s/%s: %w", res.Type, res.ID, storage.ErrAlreadyExists)
		}

		entries, err := tx.LiveEntries()
		if err != nil {
			return err
		}

		state, err := changelog.DeriveState(false, entries)
		if err != nil {
			return err
		}
		if state == changelog.StateLocalDelete {
			return fmt.Errorf("insert %s/%s: pending delete not acknowledged: %w", res.Type, res.ID, storage.ErrAlreadyExists)
		}

		if err := tx.PutRecord(content); err != nil {
			return err
		}

		seq, err := tx.Append(models.ChangeInsert, content)
		if err != nil {
			return err
		}

		s.logger.Debug("recorded local insert",
			"resource_type", res.Type,
			"resource_id", res.ID,
			"seq", seq)
		return nil
	})

	if err != nil {
		return err
	}

	return nil
}

// InsertRemote creates or overwrites a record with authoritative server
// content. It never appends to the change log: hydrating local storage from
// the server leaves no pending local mutation.
func (s *Store) InsertRemote(ctx context.Context, res *models.Resource) error {
	if _, err := s.registry.Resolve(res.Type); err != nil {
		return err
	}

	content, err := patch.Canonical(res.Content)
	if err != nil {
		return fmt.Errorf("failed to canonicalize content: %w", err)
	}

	return s.storage.Mutate(ctx, res.Type, res.ID, func(tx storage.Tx) error {
		return tx.PutRecord(content)
	})
}

// InsertAllRemote seeds a batch of authoritative server resources.
// Each resource is written in its own transaction; multi-resource
// transactions are out of scope.
func (s *Store) InsertAllRemote(ctx context.Context, resources []*models.Resource) error {
	for _, res := range resources {
		if err := s.InsertRemote(ctx, res); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", res.Type, res.ID, err)
		}
	}
	return nil
}

// Update overwrites the record content and enqueues the mutation per the
// squash rules: a not-yet-synced record is re-materialized as a fresh INSERT
// snapshot, a synced record gets an UPDATE patch from its current content.
//
// Fails with storage.ErrNotFound if no record exists for (type, id).
func (s *Store) Update(ctx context.Context, res *models.Resource) error {
	if _, err := s.registry.Resolve(res.Type); err != nil {
		return err
	}

	newContent, err := patch.Canonical(res.Content)
	if err != nil {
		return fmt.Errorf("failed to canonicalize content: %w", err)
	}

	return s.storage.Mutate(ctx, res.Type, res.ID, func(tx storage.Tx) error {
		current, exists, err := tx.Record()
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("update %s/%s: %w", res.Type, res.ID, storage.ErrNotFound)
		}

		entries, err := tx.LiveEntries()
		if err != nil {
			return err
		}

		state, err := changelog.DeriveState(true, entries)
		if err != nil {
			return err
		}

		var kind models.ChangeKind
		var payload []byte

		switch state {
		case changelog.StateLocalNew:
			// Несинхронизированной записи достаточно последнего полного снимка
			kind = models.ChangeInsert
			payload = newContent

		case changelog.StateRemoteBase, changelog.StateLocalEdit:
			// Патч от текущего содержимого; цепочка живых патчей композируется
			// при чтении, так что база первой строки остается серверной
			p, err := patch.Diff(current, newContent)
			if err != nil {
				return err
			}
			payload, err = p.Marshal()
			if err != nil {
				return err
			}
			kind = models.ChangeUpdate

		default:
			return fmt.Errorf("update %s/%s in state %s: %w", res.Type, res.ID, state, storage.ErrIntegrityViolation)
		}

		if err := tx.PutRecord(newContent); err != nil {
			return err
		}

		seq, err := tx.Append(kind, payload)
		if err != nil {
			return err
		}

		s.logger.Debug("recorded local update",
			"resource_type", res.Type,
			"resource_id", res.ID,
			"kind", kind,
			"state", state.String(),
			"seq", seq)
		return nil
	})
}

// Select returns the current content of (type, id).
// Fails with registry.ErrInvalidType for unrecognized types and
// storage.ErrNotFound for absent records.
func (s *Store) Select(ctx context.Context, resourceType, resourceID string) (*models.Resource, error) {
	if _, err := s.registry.Resolve(resourceType); err != nil {
		return nil, err
	}

	content, err := s.storage.GetRecord(ctx, resourceType, resourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("select %s/%s: %w", resourceType, resourceID, storage.ErrNotFound)
		}
		return nil, err
	}

	return &models.Resource{
		Type:    resourceType,
		ID:      resourceID,
		Content: content,
	}, nil
}

// Delete removes the record and enqueues a DELETE mutation per the squash
// rules. Deleting an absent record is a no-op that leaves no trace, and
// deleting a record that only ever existed locally purges its log lineage
// entirely: a record the server never saw leaves no change to replay.
func (s *Store) Delete(ctx context.Context, resourceType, resourceID string) error {
	if _, err := s.registry.Resolve(resourceType); err != nil {
		return err
	}

	return s.storage.Mutate(ctx, resourceType, resourceID, func(tx storage.Tx) error {
		_, exists, err := tx.Record()
		if err != nil {
			return err
		}

		entries, err := tx.LiveEntries()
		if err != nil {
			return err
		}

		state, err := changelog.DeriveState(exists, entries)
		if err != nil {
			return err
		}

		switch state {
		case changelog.StateNone, changelog.StateLocalDelete:
			// Нечего делать: записи нет или удаление уже ожидает подтверждения
			return nil

		case changelog.StateLocalNew:
			seqIDs := make([]uint64, 0, len(entries))
			for _, e := range entries {
				seqIDs = append(seqIDs, e.SequenceID)
			}
			if err := tx.Purge(seqIDs); err != nil {
				return err
			}
			if err := tx.DeleteRecord(); err != nil {
				return err
			}

			s.logger.Debug("cancelled local insert",
				"resource_type", resourceType,
				"resource_id", resourceID,
				"purged", len(seqIDs))
			return nil

		case changelog.StateRemoteBase, changelog.StateLocalEdit:
			if err := tx.DeleteRecord(); err != nil {
				return err
			}

			seq, err := tx.Append(models.ChangeDelete, nil)
			if err != nil {
				return err
			}

			s.logger.Debug("recorded local delete",
				"resource_type", resourceType,
				"resource_id", resourceID,
				"seq", seq)
			return nil
		}

		return fmt.Errorf("delete %s/%s in state %s: %w", resourceType, resourceID, state, storage.ErrIntegrityViolation)
	})
}

// GetAllLocalChanges returns one squashed pending change per resource that
// currently has live log rows, each paired with a token capturing exactly
// the rows folded into it. The result is a snapshot as of the call: rows
// appended afterwards belong to no returned token.
func (s *Store) GetAllLocalChanges(ctx context.Context) ([]models.PendingChange, error) {
	entries, err := s.storage.AllLiveEntries(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := changelog.SquashAll(entries)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("collected local changes",
		"resources", len(pending),
		"entries", len(entries))
	return pending, nil
}

// DeleteUpdates deletes exactly the log rows referenced by the token.
// Mutations appended after the token's snapshot survive, so acknowledging
// an upload never discards work the uploader did not see. Acknowledging an
// already-deleted token is a no-op.
func (s *Store) DeleteUpdates(ctx context.Context, token models.ChangeToken) error {
	if token.IsZero() {
		return nil
	}

	if err := s.storage.DeleteEntries(ctx, token.SequenceIDs()); err != nil {
		return err
	}

	s.logger.Debug("acknowledged local changes", "token", token.String())
	return nil
}

// PendingCount returns the number of resources with a pending local change
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	pending, err := s.GetAllLocalChanges(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}
