// Package tracker observes local mutations against the sync-eligible tables
// and produces exactly one change log entry per logical mutation.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/closetapp/closet-sync/internal/client/models"
	"github.com/closetapp/closet-sync/internal/client/store"
	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/syncwire"
	"github.com/google/uuid"
)

// Tracker appends change log entries for local mutations. The sync engine
// suspends it while writing server-derived data into the local store, so a
// pull never generates new outbound changes.
type Tracker struct {
	store *store.Store
	log   logging.Logger

	mu        sync.Mutex
	suspended int
}

func New(s *store.Store, log logging.Logger) *Tracker {
	return &Tracker{store: s, log: log}
}

// SetEnabled is the kill switch used during pull-apply. Calls nest:
// SetEnabled(false) twice requires SetEnabled(true) twice before tracking
// resumes, which makes the switch safe for re-entrant apply paths.
func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enabled {
		if t.suspended > 0 {
			t.suspended--
		}
	} else {
		t.suspended++
	}
}

// Enabled reports whether mutations are currently being tracked.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspended == 0
}

// RecordUpsert logs a create or update carrying the full record payload.
func (t *Tracker) RecordUpsert(ctx context.Context, table, op string, rec *syncwire.Record) error {
	if op != syncwire.OpCreate && op != syncwire.OpUpdate {
		return fmt.Errorf("invalid upsert operation %q", op)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal change payload: %w", err)
	}
	return t.append(ctx, &models.ChangeLogEntry{
		ID:        uuid.NewString(),
		Table:     table,
		RecordID:  rec.ID,
		Operation: op,
		Timestamp: rec.Clock(),
		Payload:   payload,
	})
}

// RecordDelete logs a deletion carrying just the identifier.
func (t *Tracker) RecordDelete(ctx context.Context, table, id string, ts int64) error {
	return t.append(ctx, &models.ChangeLogEntry{
		ID:        uuid.NewString(),
		Table:     table,
		RecordID:  id,
		Operation: syncwire.OpDelete,
		Timestamp: ts,
	})
}

func (t *Tracker) append(ctx context.Context, e *models.ChangeLogEntry) error {
	if !t.Enabled() {
		return nil
	}
	if !syncwire.ValidTable(e.Table) {
		return fmt.Errorf("table %q is not sync-eligible", e.Table)
	}
	if err := t.store.AppendChange(ctx, e); err != nil {
		return err
	}
	t.bumpPending(ctx)
	return nil
}

// bumpPending refreshes the pending-changes counter kept for UI display.
// Failures only cost display accuracy, so they are logged and swallowed.
func (t *Tracker) bumpPending(ctx context.Context) {
	n, err := t.store.UnsyncedCount(ctx)
	if err == nil {
		err = t.store.SetPendingChanges(ctx, n)
	}
	if err != nil {
		t.log.Warn(ctx, "failed to update pending counter", "error", err)
	}
}
