// Package syncwire defines the JSON wire types exchanged between the client
// sync engine and the server sync endpoint, plus the record envelope both
// sides merge on.
package syncwire

// Names of the sync-eligible tables. One JSON document per table is kept
// per account on the server.
const (
	TableItems     = "items"
	TableTrips     = "trips"
	TableTripItems = "tripItems"
	TableOutfits   = "outfits"
	TableWishlist  = "wishlist"
)

// Tables lists all sync-eligible tables in a stable order.
var Tables = []string{TableItems, TableTrips, TableTripItems, TableOutfits, TableWishlist}

// ValidTable reports whether name is a sync-eligible table.
func ValidTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Change log operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEntry is one durable local mutation awaiting transmission.
// Payload carries the full record for create/update and is absent for delete.
type ChangeEntry struct {
	ID        string  `json:"id"`
	Table     string  `json:"table"`
	RecordID  string  `json:"recordId"`
	Operation string  `json:"operation"`
	Timestamp int64   `json:"timestamp"`
	Payload   *Record `json:"payload,omitempty"`
}

// TableChanges partitions one table into live records and tombstoned ids.
type TableChanges struct {
	Upserts []*Record `json:"upserts"`
	Deletes []string  `json:"deletes"`
}

// PullResponse is the body of GET /sync?since=V.
type PullResponse struct {
	Success bool                    `json:"success"`
	Version int64                   `json:"version"`
	Changes map[string]TableChanges `json:"changes"`
}

// PushRequest is the body of POST /sync.
type PushRequest struct {
	LastSyncVersion int64         `json:"lastSyncVersion"`
	Changes         []ChangeEntry `json:"changes"`
}

// PushResponse is the body returned by POST /sync. ConflictIDs lists record
// ids whose entries were rejected as stale; they were still acknowledged as
// received and do not block the rest of the batch.
type PushResponse struct {
	Success     bool     `json:"success"`
	Version     int64    `json:"version"`
	ConflictIDs []string `json:"conflictIds,omitempty"`
}

// PresignUploadRequest is the body of POST /images/presign-upload.
type PresignUploadRequest struct {
	Hash        string `json:"hash"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// PresignUploadResponse reports whether the blob is already stored and, if
// not, where to PUT it. UploadURL is empty when the backend cannot presign;
// the client then falls back to PUT /images/upload/{hash}.
type PresignUploadResponse struct {
	Success       bool   `json:"success"`
	AlreadyExists bool   `json:"alreadyExists"`
	ImageRef      string `json:"imageRef"`
	UploadURL     string `json:"uploadUrl,omitempty"`
}

// UploadResponse is the body returned by PUT /images/upload/{hash}.
type UploadResponse struct {
	Success  bool   `json:"success"`
	ImageRef string `json:"imageRef"`
}

// CheckResponse is the body of GET /images/check/{hash}.
type CheckResponse struct {
	Exists bool `json:"exists"`
}

// DeleteResponse is the body of DELETE /images/{hash}.
type DeleteResponse struct {
	Success bool `json:"success"`
}
