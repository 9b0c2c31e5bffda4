// Package store holds the per-account durable documents behind the sync
// endpoint: one record set per table plus a metadata document carrying the
// monotonic version counter. Stores are passive; all merge logic lives in
// the service layer.
package store

import "context"

import "github.com/closetapp/closet-sync/internal/syncwire"

// Meta is the per-account sync metadata document. Version is authoritative
// and advances by exactly one per successful push call. The daily-quota
// fields track new-item creations for the current UTC day.
type Meta struct {
	Version           int64  `json:"version"`
	UpdatedAt         int64  `json:"updatedAt"`
	ItemsCreatedToday int    `json:"itemsCreatedToday,omitempty"`
	QuotaDay          string `json:"quotaDay,omitempty"`
}

// Tx is the view a push works against while holding exclusive access to one
// account's documents.
type Tx interface {
	LoadTable(ctx context.Context, table string) (map[string]*syncwire.Record, error)
	SaveTable(ctx context.Context, table string, records map[string]*syncwire.Record) error
	LoadMeta(ctx context.Context) (*Meta, error)
	SaveMeta(ctx context.Context, meta *Meta) error
}

// RemoteStore is the account-document backend. Reads outside Apply see a
// point-in-time copy and are safe for pull; Apply serializes read-modify-
// write cycles per account so concurrent pushes from two devices cannot
// interleave at the document level.
type RemoteStore interface {
	LoadTable(ctx context.Context, account, table string) (map[string]*syncwire.Record, error)
	LoadMeta(ctx context.Context, account string) (*Meta, error)
	Apply(ctx context.Context, account string, fn func(ctx context.Context, tx Tx) error) error
}
