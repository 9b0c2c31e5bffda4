// Package blob stores content-addressed image binaries under
// {account}/images/{hash}. The hash is the identity: the same bytes are
// stored once per account no matter how many records reference them.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// BlobStore is the binary side of sync, separate from the record documents.
type BlobStore interface {
	// Put stores data under the account/hash pair after re-verifying that
	// the bytes actually hash to hash. Returns the storage reference.
	Put(ctx context.Context, account, hash string, data []byte, contentType string) (string, error)
	// Get fetches bytes by full storage reference.
	Get(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, account, hash string) (bool, error)
	Delete(ctx context.Context, account, hash string) error
	// PresignPut returns a direct-upload URL, or "" when the backend cannot
	// presign and the caller must fall back to the upload endpoint.
	PresignPut(ctx context.Context, account, hash, contentType string, size int64) (string, error)
	// Usage reports the account's total stored bytes.
	Usage(ctx context.Context, account string) (int64, error)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
