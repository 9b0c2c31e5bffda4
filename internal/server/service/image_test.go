package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/closetapp/closet-sync/internal/server/blob"
	"github.com/closetapp/closet-sync/internal/server/config"
	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newImageService(quota config.QuotaConfig) (*ImageService, *blob.MemoryBlobStore) {
	blobs := blob.NewMemoryBlobStore()
	return NewImageService(blobs, quota, testLogger()), blobs
}

func TestUploadThenPresign_Dedup(t *testing.T) {
	svc, _ := newImageService(config.QuotaConfig{})
	ctx := context.Background()

	data := []byte("picture bytes")
	hash := hashHex(data)

	first, err := svc.Presign(ctx, "u1", &syncwire.PresignUploadRequest{
		Hash: hash, ContentType: "image/jpeg", Size: int64(len(data))})
	require.NoError(t, err)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, syncwire.ImageRef("u1", hash), first.ImageRef)

	up, err := svc.Upload(ctx, "u1", hash, data, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, syncwire.ImageRef("u1", hash), up.ImageRef)

	// second attempt with the same bytes transfers nothing
	second, err := svc.Presign(ctx, "u1", &syncwire.PresignUploadRequest{
		Hash: hash, ContentType: "image/jpeg", Size: int64(len(data))})
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)

	ok, err := svc.Check(ctx, "u1", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpload_HashMismatchRejected(t *testing.T) {
	svc, blobs := newImageService(config.QuotaConfig{})
	ctx := context.Background()

	data := []byte("real bytes")
	_, err := svc.Upload(ctx, "u1", hashHex([]byte("claimed bytes")), data, "image/jpeg")
	require.ErrorIs(t, err, shared.ErrHashMismatch)

	usage, err := blobs.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, usage)
}

func TestUpload_SizeQuota(t *testing.T) {
	svc, _ := newImageService(config.QuotaConfig{MaxImageBytes: 4})
	ctx := context.Background()

	data := []byte("too big")
	_, err := svc.Upload(ctx, "u1", hashHex(data), data, "image/jpeg")
	require.ErrorIs(t, err, shared.ErrImageTooLarge)

	_, err = svc.Presign(ctx, "u1", &syncwire.PresignUploadRequest{
		Hash: hashHex(data), Size: int64(len(data))})
	require.ErrorIs(t, err, shared.ErrImageTooLarge)
}

func TestUpload_StorageQuota(t *testing.T) {
	svc, _ := newImageService(config.QuotaConfig{MaxStorageBytes: 10})
	ctx := context.Background()

	first := []byte("12345678")
	_, err := svc.Upload(ctx, "u1", hashHex(first), first, "image/jpeg")
	require.NoError(t, err)

	second := []byte("overflow")
	_, err = svc.Upload(ctx, "u1", hashHex(second), second, "image/jpeg")
	require.ErrorIs(t, err, shared.ErrQuotaExceeded)

	// re-uploading already-stored bytes is not a new allocation
	_, err = svc.Upload(ctx, "u1", hashHex(first), first, "image/jpeg")
	require.NoError(t, err)
}

func TestDownload_AccountScoping(t *testing.T) {
	svc, _ := newImageService(config.QuotaConfig{})
	ctx := context.Background()

	data := []byte("private picture")
	hash := hashHex(data)
	_, err := svc.Upload(ctx, "u1", hash, data, "image/jpeg")
	require.NoError(t, err)

	got, err := svc.Download(ctx, "u1", syncwire.ImageRef("u1", hash))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = svc.Download(ctx, "u2", syncwire.ImageRef("u1", hash))
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Download(ctx, "u1", syncwire.ImageRef("u1", hashHex([]byte("absent"))))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDelete_RemovesBlob(t *testing.T) {
	svc, _ := newImageService(config.QuotaConfig{})
	ctx := context.Background()

	data := []byte("short lived")
	hash := hashHex(data)
	_, err := svc.Upload(ctx, "u1", hash, data, "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", hash))
	ok, err := svc.Check(ctx, "u1", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}
