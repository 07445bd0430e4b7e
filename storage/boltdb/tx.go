package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/storage"
)

// Mutate runs fn inside a single bbolt write transaction scoped to one
// (type, id). bbolt admits one writer at a time, so mutations to the same
// key are trivially serialized; if fn fails the whole transaction rolls
// back and neither the record nor the log changes.
func (s *Storage) Mutate(ctx context.Context, resourceType, resourceID string, fn func(storage.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&mutationTx{
			tx:           tx,
			resourceType: resourceType,
			resourceID:   resourceID,
		})
	})

	if err != nil {
		return err
	}

	return nil
}

// mutationTx реализует storage.Tx поверх открытой bbolt-транзакции
type mutationTx struct {
	tx           *bbolt.Tx
	resourceType string
	resourceID   string
}

// Record returns the current content for the key, or ok=false if absent
func (t *mutationTx) Record() ([]byte, bool, error) {
	bucket := t.tx.Bucket(bucketRecords)
	if bucket == nil {
		return nil, false, fmt.Errorf("records bucket missing: %w", storage.ErrIntegrityViolation)
	}

	data := bucket.Get(recordKey(t.resourceType, t.resourceID))
	if data == nil {
		return nil, false, nil
	}

	// Копируем: bbolt владеет данными только до конца транзакции
	content := make([]byte, len(data))
	copy(content, data)
	return content, true, nil
}

// PutRecord creates or overwrites the record content for the key
func (t *mutationTx) PutRecord(content []byte) error {
	bucket := t.tx.Bucket(bucketRecords)
	if bucket == nil {
		return fmt.Errorf("records bucket missing: %w", storage.ErrIntegrityViolation)
	}

	if err := bucket.Put(recordKey(t.resourceType, t.resourceID), content); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// DeleteRecord removes the record for the key
func (t *mutationTx) DeleteRecord() error {
	bucket := t.tx.Bucket(bucketRecords)
	if bucket == nil {
		return fmt.Errorf("records bucket missing: %w", storage.ErrIntegrityViolation)
	}

	if err := bucket.Delete(recordKey(t.resourceType, t.resourceID)); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}

// LiveEntries returns the live change-log rows for the key in sequence order
func (t *mutationTx) LiveEntries() ([]models.LocalChangeEntry, error) {
	return liveEntriesForKey(t.tx, t.resourceType, t.resourceID)
}

// Append adds a change-log row for the key and returns its sequence id
func (t *mutationTx) Append(kind models.ChangeKind, payload []byte) (uint64, error) {
	bucket := t.tx.Bucket(bucketChangelog)
	if bucket == nil {
		return 0, fmt.Errorf("changelog bucket missing: %w", storage.ErrIntegrityViolation)
	}

	seq, err := bucket.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence id: %w", err)
	}

	entry := models.LocalChangeEntry{
		CreatedAt:    time.Now().UTC(),
		ResourceType: t.resourceType,
		ResourceID:   t.resourceID,
		Kind:         kind,
		Payload:      payload,
		SequenceID:   seq,
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal change entry: %w", err)
	}

	if err := bucket.Put(seqKey(seq), data); err != nil {
		return 0, fmt.Errorf("failed to append change entry: %w", err)
	}

	return seq, nil
}

// Purge physically deletes the given change-log rows of the key
func (t *mutationTx) Purge(seqIDs []uint64) error {
	bucket := t.tx.Bucket(bucketChangelog)
	if bucket == nil {
		return fmt.Errorf("changelog bucket missing: %w", storage.ErrIntegrityViolation)
	}

	for _, seq := range seqIDs {
		if err := bucket.Delete(seqKey(seq)); err != nil {
			return fmt.Errorf("failed to purge change entry %d: %w", seq, err)
		}
	}

	return nil
}

// seqKey кодирует sequence id в big-endian ключ, сохраняющий порядок обхода
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// liveEntriesForKey обходит журнал и отбирает строки одного (type, id)
func liveEntriesForKey(tx *bbolt.Tx, resourceType, resourceID string) ([]models.LocalChangeEntry, error) {
	bucket := tx.Bucket(bucketChangelog)
	if bucket == nil {
		return nil, nil
	}

	var entries []models.LocalChangeEntry
	err := bucket.ForEach(func(k, v []byte) error {
		var entry models.LocalChangeEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("failed to unmarshal change entry: %w", err)
		}

		if entry.ResourceType == resourceType && entry.ResourceID == resourceID {
			entries = append(entries, entry)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}
