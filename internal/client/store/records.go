package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/closetapp/closet-sync/internal/syncwire"
)

// GetRecord returns the record with the given id, tombstones included, or
// nil when none exists.
func (s *Store) GetRecord(ctx context.Context, table, id string) (*syncwire.Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM records WHERE table_name = ? AND id = ?`, table, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", table, id, err)
	}

	var rec syncwire.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("corrupt record %s/%s: %w", table, id, err)
	}
	return &rec, nil
}

// PutRecord upserts a record by id, replacing the stored document wholly.
func (s *Store) PutRecord(ctx context.Context, table string, rec *syncwire.Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `INSERT INTO records (table_name, id, doc, created_at, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(table_name, id) DO UPDATE SET doc = excluded.doc,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`
	_, err = s.db.ExecContext(ctx, query,
		table, rec.ID, string(doc), rec.CreatedAt, rec.UpdatedAt, boolToInt(rec.Deleted))
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// MarkDeleted sets the tombstone on a record at the given timestamp. A
// missing record is a no-op: there is nothing to tombstone locally and the
// deletion will not be resurrected later thanks to LWW.
func (s *Store) MarkDeleted(ctx context.Context, table, id string, ts int64) error {
	rec, err := s.GetRecord(ctx, table, id)
	if err != nil {
		return err
	}
	if rec == nil || rec.Deleted {
		return nil
	}
	rec.SetDeleted(ts)
	return s.PutRecord(ctx, table, rec)
}

// ListRecords lists a table's records, optionally including tombstones.
func (s *Store) ListRecords(ctx context.Context, table string, includeDeleted bool) ([]*syncwire.Record, error) {
	query := `SELECT doc FROM records WHERE table_name = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	rows, err := s.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []*syncwire.Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rec := &syncwire.Record{}
		if err := json.Unmarshal([]byte(doc), rec); err != nil {
			return nil, fmt.Errorf("corrupt record in %s: %w", table, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountLive returns the number of non-tombstoned records in a table.
func (s *Store) CountLive(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE table_name = ? AND deleted = 0`, table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
