package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/closetapp/closet-sync/internal/lww"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

// pull requests server-side changes since the last-seen version and applies
// them locally via LWW. The local last-seen version advances only after the
// whole response has been absorbed, so a transport failure never leaves a
// half-applied pull behind a bumped version.
func (e *Engine) pull(ctx context.Context, res *Result) error {
	since, err := e.store.LastSyncVersion(ctx)
	if err != nil {
		return err
	}

	resp, err := e.api.Pull(ctx, since)
	if err != nil {
		return err
	}

	if err := e.apply(ctx, resp, res); err != nil {
		return err
	}
	return e.store.SetLastSyncVersion(ctx, resp.Version)
}

// apply absorbs one pull response. Tracking is suspended for the duration
// so server-derived writes never generate new outbound changes.
func (e *Engine) apply(ctx context.Context, resp *syncwire.PullResponse, res *Result) error {
	e.tracker.SetEnabled(false)
	defer e.tracker.SetEnabled(true)

	for _, table := range syncwire.Tables {
		changes, ok := resp.Changes[table]
		if !ok {
			continue
		}

		for _, incoming := range changes.Upserts {
			local, err := e.store.GetRecord(ctx, table, incoming.ID)
			if err != nil {
				return err
			}
			d := lww.Merge(local, incoming, true)
			if d.Conflict {
				res.Conflicts++
				e.log.Info(ctx, "pull conflict resolved to server copy",
					"table", table, "id", incoming.ID)
			}
			if !d.Accept {
				continue
			}
			merged := incoming.Clone()
			if table == syncwire.TableItems {
				preserveItemImage(local, merged)
			}
			if err := e.store.PutRecord(ctx, table, merged); err != nil {
				return err
			}
			res.Pulled++
		}

		for _, id := range changes.Deletes {
			local, err := e.store.GetRecord(ctx, table, id)
			if err != nil {
				return err
			}
			if local == nil || local.Deleted {
				continue
			}
			// Tombstone without advancing the clock, so a genuinely newer
			// local edit still wins the next LWW round.
			local.Deleted = true
			if err := e.store.PutRecord(ctx, table, local); err != nil {
				return err
			}
			res.Pulled++
		}
	}
	return nil
}

// preserveItemImage keeps a device's already-held image bytes across a
// server-driven replacement; server records never carry imageData. When the
// incoming reference equals the local one (including both absent) the bytes
// stay valid indefinitely. When the references differ the bytes are stale,
// but they are still carried over: the download step clears them only once
// a successful download has replaced them.
func preserveItemImage(local, incoming *syncwire.Record) {
	if local == nil {
		return
	}
	if data := local.StringField("imageData"); data != "" {
		_ = incoming.SetField("imageData", data)
	}
}

// push transmits all not-yet-synced change log entries as one batch. On
// reported conflicts the engine re-pulls once to absorb the server's
// resolution instead of retrying the push.
func (e *Engine) push(ctx context.Context, res *Result) error {
	entries, err := e.store.UnsyncedChanges(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	since, err := e.store.LastSyncVersion(ctx)
	if err != nil {
		return err
	}

	req := &syncwire.PushRequest{LastSyncVersion: since}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		wireEntry := syncwire.ChangeEntry{
			ID:        entry.ID,
			Table:     entry.Table,
			RecordID:  entry.RecordID,
			Operation: entry.Operation,
			Timestamp: entry.Timestamp,
		}
		if len(entry.Payload) > 0 {
			rec := &syncwire.Record{}
			if err := json.Unmarshal(entry.Payload, rec); err != nil {
				return fmt.Errorf("corrupt change payload %s: %w", entry.ID, err)
			}
			// Raw image bytes are a client-side transient; they never
			// travel in record payloads.
			rec.ClearField("imageData")
			wireEntry.Payload = rec
		}
		req.Changes = append(req.Changes, wireEntry)
		ids = append(ids, entry.ID)
	}

	resp, err := e.api.Push(ctx, req)
	if err != nil {
		return err
	}

	if err := e.store.MarkChangesSynced(ctx, ids); err != nil {
		return err
	}
	res.Pushed += len(entries)

	n, err := e.store.UnsyncedCount(ctx)
	if err == nil {
		err = e.store.SetPendingChanges(ctx, n)
	}
	if err != nil {
		e.log.Warn(ctx, "failed to refresh pending counter", "error", err)
	}

	if len(resp.ConflictIDs) > 0 {
		res.Conflicts += len(resp.ConflictIDs)
		e.log.Info(ctx, "push reported conflicts, re-pulling",
			"count", len(resp.ConflictIDs))
		// The last-seen version stays at its pre-push value here; advancing
		// it first would put the re-pull on the nothing-newer fast path and
		// the server's resolution would never arrive.
		if err := e.pull(ctx, res); err != nil {
			return fmt.Errorf("conflict re-pull: %w", err)
		}
		return nil
	}
	return e.store.SetLastSyncVersion(ctx, resp.Version)
}
