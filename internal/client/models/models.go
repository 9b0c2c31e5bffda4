// Package models defines the typed client-side records for the five
// sync-eligible tables, the change log entry, and the sync status summary.
//
// Records cross the wire as opaque JSON (syncwire.Record); these types are
// the client application's view of them. Timestamps are Unix epoch
// milliseconds.
package models

import "encoding/json"

// Item is a wardrobe item. ImageData holds raw encoded bytes only
// transiently on the client; it is never persisted server-side.
type Item struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Deleted   bool   `json:"_deleted,omitempty"`

	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	Size     string   `json:"size,omitempty"`
	Notes    string   `json:"notes,omitempty"`

	ImageRef  string `json:"imageRef,omitempty"`
	ImageHash string `json:"imageHash,omitempty"`
	ImageData string `json:"imageData,omitempty"`

	// PendingImageURL is an external image URL from the import wizard that
	// still has to be fetched and uploaded.
	PendingImageURL string `json:"pendingImageUrl,omitempty"`
}

// Trip is a planned trip that items get packed for.
type Trip struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Deleted   bool   `json:"_deleted,omitempty"`

	Name        string `json:"name"`
	Destination string `json:"destination,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// TripItem links an item into a trip's packing list. It carries no
// updatedAt; createdAt is its LWW clock.
type TripItem struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Deleted   bool   `json:"_deleted,omitempty"`

	TripID string `json:"tripId"`
	ItemID string `json:"itemId"`
	Packed bool   `json:"packed,omitempty"`
}

// Outfit is a named combination of items.
type Outfit struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Deleted   bool   `json:"_deleted,omitempty"`

	Name    string   `json:"name"`
	ItemIDs []string `json:"itemIds,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// WishlistItem is a not-yet-owned item the user is tracking.
type WishlistItem struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Deleted   bool   `json:"_deleted,omitempty"`

	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Price    string `json:"price,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// ChangeLogEntry is one local mutation awaiting transmission. Entries are
// append-only until marked synced, then eligible for purge.
type ChangeLogEntry struct {
	ID        string
	Table     string
	RecordID  string
	Operation string
	Timestamp int64
	Payload   json.RawMessage
	Synced    bool
}

// SyncStatus summarizes sync metadata for display.
type SyncStatus struct {
	LastSyncVersion int64
	LastSyncAt      int64
	LastError       string
	PendingChanges  int64
}
