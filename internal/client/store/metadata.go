package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/closetapp/closet-sync/internal/client/models"
)

// Sync metadata keys.
const (
	metaLastSyncVersion = "last_sync_version"
	metaLastSyncAt      = "last_sync_at"
	metaLastError       = "last_error"
	metaPendingChanges  = "pending_changes"
)

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) getMetaInt(ctx context.Context, key string) (int64, error) {
	v, err := s.getMeta(ctx, key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt metadata[%s]: %w", key, err)
	}
	return n, nil
}

// LastSyncVersion is the last server version this client fully incorporated.
func (s *Store) LastSyncVersion(ctx context.Context) (int64, error) {
	return s.getMetaInt(ctx, metaLastSyncVersion)
}

func (s *Store) SetLastSyncVersion(ctx context.Context, v int64) error {
	return s.setMeta(ctx, metaLastSyncVersion, strconv.FormatInt(v, 10))
}

func (s *Store) LastSyncAt(ctx context.Context) (int64, error) {
	return s.getMetaInt(ctx, metaLastSyncAt)
}

func (s *Store) SetLastSyncAt(ctx context.Context, ts int64) error {
	return s.setMeta(ctx, metaLastSyncAt, strconv.FormatInt(ts, 10))
}

func (s *Store) LastSyncError(ctx context.Context) (string, error) {
	return s.getMeta(ctx, metaLastError)
}

func (s *Store) SetLastSyncError(ctx context.Context, msg string) error {
	return s.setMeta(ctx, metaLastError, msg)
}

// PendingChanges is a counter maintained by the change tracker for UI
// display; the change log itself stays authoritative.
func (s *Store) PendingChanges(ctx context.Context) (int64, error) {
	return s.getMetaInt(ctx, metaPendingChanges)
}

func (s *Store) SetPendingChanges(ctx context.Context, n int64) error {
	return s.setMeta(ctx, metaPendingChanges, strconv.FormatInt(n, 10))
}

// Status assembles the sync metadata summary.
func (s *Store) Status(ctx context.Context) (*models.SyncStatus, error) {
	version, err := s.LastSyncVersion(ctx)
	if err != nil {
		return nil, err
	}
	at, err := s.LastSyncAt(ctx)
	if err != nil {
		return nil, err
	}
	lastErr, err := s.LastSyncError(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.PendingChanges(ctx)
	if err != nil {
		return nil, err
	}
	return &models.SyncStatus{
		LastSyncVersion: version,
		LastSyncAt:      at,
		LastError:       lastErr,
		PendingChanges:  pending,
	}, nil
}
