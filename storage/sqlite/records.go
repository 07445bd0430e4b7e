package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medisync/healthstore/storage"
)

// GetRecord returns current content for (type, id)
// Returns storage.ErrNotFound if the record is absent
func (s *Storage) GetRecord(ctx context.Context, resourceType, resourceID string) ([]byte, error) {
	query := `
		SELECT content FROM records
		WHERE resource_type = ? AND resource_id = ?
	`

	var content []byte
	err := s.db.QueryRowContext(ctx, query, resourceType, resourceID).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	return content, nil
}
