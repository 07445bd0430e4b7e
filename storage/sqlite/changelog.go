package sqlite

import (
	"context"
	"fmt"

	"github.com/medisync/healthstore/models"
)

// AllLiveEntries returns a snapshot of every live change-log row,
// ordered by sequence id
func (s *Storage) AllLiveEntries(ctx context.Context) ([]models.LocalChangeEntry, error) {
	query := `
		SELECT sequence_id, resource_type, resource_id, kind, payload, created_at
		FROM local_changes
		ORDER BY sequence_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query change entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteEntries physically deletes the given change-log rows.
// Missing ids are skipped, so acknowledging the same token twice is a no-op.
func (s *Storage) DeleteEntries(ctx context.Context, seqIDs []uint64) error {
	if len(seqIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `DELETE FROM local_changes WHERE sequence_id = ?`
	for _, seq := range seqIDs {
		if _, err := tx.ExecContext(ctx, query, int64(seq)); err != nil {
			return fmt.Errorf("failed to delete change entry %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}
