// Package transport implements the HTTP client for the sync protocol:
// JSON over HTTPS, bearer-token authenticated.
package transport

import (
	"context"

	"github.com/closetapp/closet-sync/internal/syncwire"
)

// API is the server surface the sync engine depends on. The engine is
// constructed against this interface so tests can substitute an in-process
// fake.
type API interface {
	// Pull requests all server-side records changed since the given version.
	Pull(ctx context.Context, since int64) (*syncwire.PullResponse, error)

	// Push transmits a batch of change log entries.
	Push(ctx context.Context, req *syncwire.PushRequest) (*syncwire.PushResponse, error)

	// PresignUpload asks whether a blob already exists and, if not, where
	// to upload it.
	PresignUpload(ctx context.Context, req *syncwire.PresignUploadRequest) (*syncwire.PresignUploadResponse, error)

	// UploadImage transfers blob bytes through the server upload endpoint.
	UploadImage(ctx context.Context, hash string, data []byte, contentType string) (*syncwire.UploadResponse, error)

	// UploadPresigned PUTs blob bytes directly to a presigned URL.
	UploadPresigned(ctx context.Context, url string, data []byte, contentType string) error

	// CheckImage reports whether a blob for hash is already stored.
	CheckImage(ctx context.Context, hash string) (bool, error)

	// DownloadImage fetches blob bytes by storage reference.
	DownloadImage(ctx context.Context, ref string) ([]byte, error)

	// DeleteImage removes a blob by hash.
	DeleteImage(ctx context.Context, hash string) error
}
