package boltdb

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/medisync/healthstore/storage"
)

// GetRecord returns current content for (type, id)
func (s *Storage) GetRecord(ctx context.Context, resourceType, resourceID string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var content []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get(recordKey(resourceType, resourceID))
		if data == nil {
			return storage.ErrNotFound
		}

		content = make([]byte, len(data))
		copy(content, data)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return content, nil
}
