// Package service implements the server-side sync semantics: pull
// partitioning, per-entry LWW on push, the single version bump, and the
// image quota/dedup rules. Handlers stay thin; stores stay passive.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/lww"
	"github.com/closetapp/closet-sync/internal/server/config"
	"github.com/closetapp/closet-sync/internal/server/store"
	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

type SyncService struct {
	store store.RemoteStore
	quota config.QuotaConfig
	log   logging.Logger
	now   func() time.Time
}

func NewSyncService(s store.RemoteStore, quota config.QuotaConfig, log logging.Logger) *SyncService {
	return &SyncService{store: s, quota: quota, log: log, now: time.Now}
}

// Pull returns the account's current version and, when the caller is behind,
// the full live/tombstone partition of every table. No field-level deltas:
// the client's own LWW comparison de-duplicates, trading bandwidth for
// server simplicity.
func (s *SyncService) Pull(ctx context.Context, account string, since int64) (*syncwire.PullResponse, error) {
	meta, err := s.store.LoadMeta(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}

	resp := &syncwire.PullResponse{
		Success: true,
		Version: meta.Version,
		Changes: map[string]syncwire.TableChanges{},
	}
	if since >= meta.Version {
		for _, table := range syncwire.Tables {
			resp.Changes[table] = syncwire.TableChanges{
				Upserts: []*syncwire.Record{},
				Deletes: []string{},
			}
		}
		return resp, nil
	}

	for _, table := range syncwire.Tables {
		records, err := s.store.LoadTable(ctx, account, table)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", table, err)
		}
		changes := syncwire.TableChanges{
			Upserts: []*syncwire.Record{},
			Deletes: []string{},
		}
		for _, rec := range records {
			if rec.Deleted {
				changes.Deletes = append(changes.Deletes, rec.ID)
			} else {
				changes.Upserts = append(changes.Upserts, rec)
			}
		}
		resp.Changes[table] = changes
	}
	return resp, nil
}

// Push applies one change batch under the account's exclusive lock. Entries
// at or before a record's stored time are rejected as conflicts but still
// acknowledged; the version advances by exactly one for the whole call. A
// failed quota pre-check rejects the entire batch with nothing applied.
func (s *SyncService) Push(ctx context.Context, account string, req *syncwire.PushRequest) (*syncwire.PushResponse, error) {
	resp := &syncwire.PushResponse{Success: true}

	err := s.store.Apply(ctx, account, func(ctx context.Context, tx store.Tx) error {
		meta, err := tx.LoadMeta(ctx)
		if err != nil {
			return fmt.Errorf("load meta: %w", err)
		}
		day := s.now().UTC().Format("2006-01-02")
		if meta.QuotaDay != day {
			meta.QuotaDay = day
			meta.ItemsCreatedToday = 0
		}

		tables := map[string]map[string]*syncwire.Record{}
		load := func(table string) (map[string]*syncwire.Record, error) {
			if t, ok := tables[table]; ok {
				return t, nil
			}
			t, err := tx.LoadTable(ctx, table)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", table, err)
			}
			tables[table] = t
			return t, nil
		}

		if err := s.checkQuotas(req, meta, load); err != nil {
			return err
		}

		dirty := map[string]bool{}
		for _, entry := range req.Changes {
			table, err := load(entry.Table)
			if err != nil {
				return err
			}
			existing := table[entry.RecordID]

			var incoming *syncwire.Record
			if entry.Operation == syncwire.OpDelete {
				if existing == nil {
					continue // nothing to tombstone; acknowledged as received
				}
				incoming = existing.Clone()
				incoming.SetDeleted(entry.Timestamp)
			} else {
				incoming = entry.Payload
			}

			d := lww.Merge(existing, incoming, false)
			if !d.Accept {
				resp.ConflictIDs = append(resp.ConflictIDs, entry.RecordID)
				continue
			}
			if entry.Table == syncwire.TableItems && existing == nil && !incoming.Deleted {
				meta.ItemsCreatedToday++
			}
			table[entry.RecordID] = incoming
			dirty[entry.Table] = true
		}

		for table := range dirty {
			if err := tx.SaveTable(ctx, table, tables[table]); err != nil {
				return fmt.Errorf("save %s: %w", table, err)
			}
		}

		meta.Version++
		meta.UpdatedAt = s.now().UnixMilli()
		if err := tx.SaveMeta(ctx, meta); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		resp.Version = meta.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.ConflictIDs) > 0 {
		s.log.Info(ctx, "push resolved conflicts", "account", account,
			"conflicts", len(resp.ConflictIDs), "version", resp.Version)
	}
	return resp, nil
}

// checkQuotas runs the hard-cap pre-check before anything is applied.
func (s *SyncService) checkQuotas(req *syncwire.PushRequest, meta *store.Meta,
	load func(string) (map[string]*syncwire.Record, error)) error {

	creates := map[string]int{}
	for _, entry := range req.Changes {
		if entry.Operation != syncwire.OpCreate || entry.Payload == nil || entry.Payload.Deleted {
			continue
		}
		table, err := load(entry.Table)
		if err != nil {
			return err
		}
		if table[entry.RecordID] == nil {
			creates[entry.Table]++
		}
	}

	for tableName, n := range creates {
		limit := s.tableCap(tableName)
		if limit <= 0 {
			continue
		}
		table, err := load(tableName)
		if err != nil {
			return err
		}
		live := 0
		for _, rec := range table {
			if !rec.Deleted {
				live++
			}
		}
		if live+n > limit {
			return fmt.Errorf("%s limit %d reached: %w", tableName, limit, shared.ErrQuotaExceeded)
		}
	}

	if n := creates[syncwire.TableItems]; n > 0 && s.quota.MaxNewItemsDay > 0 &&
		meta.ItemsCreatedToday+n > s.quota.MaxNewItemsDay {
		return fmt.Errorf("daily new-item limit %d reached: %w",
			s.quota.MaxNewItemsDay, shared.ErrQuotaExceeded)
	}
	return nil
}

func (s *SyncService) tableCap(table string) int {
	switch table {
	case syncwire.TableItems:
		return s.quota.MaxItems
	case syncwire.TableTrips:
		return s.quota.MaxTrips
	case syncwire.TableOutfits:
		return s.quota.MaxOutfits
	case syncwire.TableWishlist:
		return s.quota.MaxWishlist
	default:
		return 0
	}
}
