// Package boltdb implements the storage contract on top of a single bbolt
// file: one bucket for current record content, one for the append-only
// local change log. bbolt gives us the two properties the contract needs
// for free — a single serialized writer and multi-bucket atomic commits.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/medisync/healthstore/storage"
)

var (
	// BoltDB bucket names
	bucketRecords   = []byte("records")
	bucketChangelog = []byte("changelog")
)

// keySeparator разделяет тип и идентификатор в ключе записи.
// Нулевой байт не встречается ни в идентификаторах типов, ни в UUID.
const keySeparator = "\x00"

// Storage represents BoltDB storage implementation for the resource store
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Bucket для текущего содержимого ресурсов
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}

		// Bucket для журнала локальных изменений
		if _, err := tx.CreateBucketIfNotExists(bucketChangelog); err != nil {
			return fmt.Errorf("failed to create changelog bucket: %w", err)
		}

		return nil
	})
}

// recordKey собирает ключ записи из (type, id)
func recordKey(resourceType, resourceID string) []byte {
	return []byte(resourceType + keySeparator + resourceID)
}

// Clear removes all records and change-log rows
func (s *Storage) Clear(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketChangelog} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("failed to delete bucket: %w", err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}
