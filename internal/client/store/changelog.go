package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/closetapp/closet-sync/internal/client/models"
	"github.com/closetapp/closet-sync/internal/dbx"
)

// AppendChange appends one change log entry. Entries are append-only until
// marked synced; nothing else ever mutates them in place.
func (s *Store) AppendChange(ctx context.Context, e *models.ChangeLogEntry) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (id, table_name, record_id, operation, ts, payload, synced)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		e.ID, e.Table, e.RecordID, e.Operation, e.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	return nil
}

// UnsyncedChanges lists entries awaiting transmission, oldest first.
func (s *Store) UnsyncedChanges(ctx context.Context) ([]*models.ChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, table_name, record_id, operation, ts, payload
		 FROM change_log WHERE synced = 0 ORDER BY ts, id`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select changes: %w", err)
	}
	defer rows.Close()

	var result []*models.ChangeLogEntry
	for rows.Next() {
		e := &models.ChangeLogEntry{}
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Operation, &e.Timestamp, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkChangesSynced flips the synced flag on the given entries in one
// transaction.
func (s *Store) MarkChangesSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE change_log SET synced = 1 WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to mark change %s synced: %w", id, err)
			}
		}
		return nil
	})
}

// PurgeSyncedChanges garbage-collects entries already marked synced and
// returns how many were removed.
func (s *Store) PurgeSyncedChanges(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM change_log WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge changes: %w", err)
	}
	return res.RowsAffected()
}

// UnsyncedCount returns the number of entries awaiting transmission.
func (s *Store) UnsyncedCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM change_log WHERE synced = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count changes: %w", err)
	}
	return n, nil
}
