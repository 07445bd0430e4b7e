package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/storage"
)

// Mutate runs fn inside a single database transaction scoped to one
// (type, id). The single-connection pool serializes writers, so mutations
// to the same key never interleave; if fn fails the transaction rolls back
// and neither the record nor the log changes.
func (s *Storage) Mutate(ctx context.Context, resourceType, resourceID string, fn func(storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	mtx := &mutationTx{
		ctx:          ctx,
		tx:           tx,
		resourceType: resourceType,
		resourceID:   resourceID,
	}

	if err := fn(mtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mutation: %w", err)
	}

	return nil
}

// mutationTx реализует storage.Tx поверх открытой SQL-транзакции
type mutationTx struct {
	ctx          context.Context
	tx           *sql.Tx
	resourceType string
	resourceID   string
}

// Record returns the current content for the key, or ok=false if absent
func (t *mutationTx) Record() ([]byte, bool, error) {
	query := `
		SELECT content FROM records
		WHERE resource_type = ? AND resource_id = ?
	`

	var content []byte
	err := t.tx.QueryRowContext(t.ctx, query, t.resourceType, t.resourceID).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}

	return content, true, nil
}

// PutRecord creates or overwrites the record content for the key
func (t *mutationTx) PutRecord(content []byte) error {
	query := `
		INSERT INTO records (resource_type, resource_id, content)
		VALUES (?, ?, ?)
		ON CONFLICT (resource_type, resource_id) DO UPDATE SET content = excluded.content
	`

	if _, err := t.tx.ExecContext(t.ctx, query, t.resourceType, t.resourceID, content); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// DeleteRecord removes the record for the key
func (t *mutationTx) DeleteRecord() error {
	query := `DELETE FROM records WHERE resource_type = ? AND resource_id = ?`

	if _, err := t.tx.ExecContext(t.ctx, query, t.resourceType, t.resourceID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}

// LiveEntries returns the live change-log rows for the key in sequence order
func (t *mutationTx) LiveEntries() ([]models.LocalChangeEntry, error) {
	query := `
		SELECT sequence_id, resource_type, resource_id, kind, payload, created_at
		FROM local_changes
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY sequence_id
	`

	rows, err := t.tx.QueryContext(t.ctx, query, t.resourceType, t.resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query change entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Append adds a change-log row for the key and returns its sequence id
func (t *mutationTx) Append(kind models.ChangeKind, payload []byte) (uint64, error) {
	query := `
		INSERT INTO local_changes (resource_type, resource_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	res, err := t.tx.ExecContext(t.ctx, query,
		t.resourceType,
		t.resourceID,
		string(kind),
		payload,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append change entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence id: %w", err)
	}

	return uint64(seq), nil
}

// Purge physically deletes the given change-log rows of the key
func (t *mutationTx) Purge(seqIDs []uint64) error {
	query := `DELETE FROM local_changes WHERE sequence_id = ?`

	for _, seq := range seqIDs {
		if _, err := t.tx.ExecContext(t.ctx, query, int64(seq)); err != nil {
			return fmt.Errorf("failed to purge change entry %d: %w", seq, err)
		}
	}

	return nil
}

// scanEntries читает строки журнала из результата запроса
func scanEntries(rows *sql.Rows) ([]models.LocalChangeEntry, error) {
	var entries []models.LocalChangeEntry

	for rows.Next() {
		var entry models.LocalChangeEntry
		var seq, createdAt int64
		var kind string

		if err := rows.Scan(&seq, &entry.ResourceType, &entry.ResourceID, &kind, &entry.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}

		entry.SequenceID = uint64(seq)
		entry.Kind = models.ChangeKind(kind)
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change entries: %w", err)
	}

	return entries, nil
}
