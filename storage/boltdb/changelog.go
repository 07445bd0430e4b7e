package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/storage"
)

// AllLiveEntries returns a snapshot of every live change-log row in
// sequence order. The big-endian sequence keys make the bucket cursor
// yield rows exactly in append order.
func (s *Storage) AllLiveEntries(ctx context.Context) ([]models.LocalChangeEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entries []models.LocalChangeEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketChangelog)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var entry models.LocalChangeEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal change entry: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get live entries: %w", err)
	}

	return entries, nil
}

// DeleteEntries physically deletes the given change-log rows.
// Missing ids are skipped, so acknowledging the same token twice is a no-op.
func (s *Storage) DeleteEntries(ctx context.Context, seqIDs []uint64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketChangelog)
		if bucket == nil {
			return nil
		}

		for _, seq := range seqIDs {
			// Delete отсутствующего ключа в bbolt не является ошибкой
			if err := bucket.Delete(seqKey(seq)); err != nil {
				return fmt.Errorf("failed to delete change entry %d: %w", seq, err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}
