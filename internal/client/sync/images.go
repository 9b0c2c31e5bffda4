package sync

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/closetapp/closet-sync/internal/syncwire"
)

const (
	uploadRetryAttempts = 3
	uploadRetryBackoff  = 500 * time.Millisecond
	defaultContentType  = "image/jpeg"
)

// syncImages runs the two image replication phases: upload local bytes not
// yet in the blob store, then download referenced blobs absent locally.
// Each image is an independent unit; one failure is logged and skipped so
// the remaining images still replicate this pass.
func (e *Engine) syncImages(ctx context.Context, res *Result) error {
	items, err := e.store.ListRecords(ctx, syncwire.TableItems, false)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := e.uploadItemImage(ctx, item, res); err != nil {
			e.log.Warn(ctx, "image upload failed", "item", item.ID, "error", err)
		}
	}
	for _, item := range items {
		if err := e.downloadItemImage(ctx, item, res); err != nil {
			e.log.Warn(ctx, "image download failed", "item", item.ID, "error", err)
		}
	}
	return nil
}

// uploadItemImage pushes an item's transient bytes into the blob store and
// rewrites the item to reference them. The rewrite is a tracked mutation so
// the new reference propagates to other devices on the next push.
func (e *Engine) uploadItemImage(ctx context.Context, item *syncwire.Record, res *Result) error {
	if item.StringField("imageRef") != "" {
		return nil
	}
	data, ok := decodeImageData(item.StringField("imageData"))
	if !ok {
		return nil
	}

	hash := hashBytes(data)
	ref, err := e.uploadBlob(ctx, hash, data, defaultContentType)
	if err != nil {
		return err
	}

	if err := e.store.CacheImage(hash, data); err != nil {
		return err
	}

	item.ClearField("imageData")
	if err := item.SetField("imageRef", ref); err != nil {
		return err
	}
	if err := item.SetField("imageHash", hash); err != nil {
		return err
	}
	item.UpdatedAt = e.now().UnixMilli()

	if err := e.store.PutRecord(ctx, syncwire.TableItems, item); err != nil {
		return err
	}
	if err := e.tracker.RecordUpsert(ctx, syncwire.TableItems, syncwire.OpUpdate, item); err != nil {
		return err
	}
	res.ImagesUploaded++
	return nil
}

// downloadItemImage fetches a referenced blob missing from the local cache,
// verifies its content hash, and clears any stale transient bytes once the
// fresh copy is in place. Clearing is untracked: it is local hygiene, not a
// logical mutation.
func (e *Engine) downloadItemImage(ctx context.Context, item *syncwire.Record, res *Result) error {
	ref := item.StringField("imageRef")
	if ref == "" {
		return nil
	}
	hash := item.StringField("imageHash")
	if hash == "" {
		hash = syncwire.HashFromRef(ref)
	}
	if hash == "" {
		return nil
	}

	if !e.store.HasCachedImage(hash) {
		if !syncwire.AccountOwnsRef(e.cfg.UserID, ref) {
			e.log.Warn(ctx, "skipping foreign image reference", "item", item.ID, "ref", ref)
			return nil
		}
		data, err := e.api.DownloadImage(ctx, ref)
		if err != nil {
			return err
		}
		if hashBytes(data) != hash {
			e.log.Warn(ctx, "downloaded image failed hash check", "item", item.ID, "ref", ref)
			return nil
		}
		if err := e.store.CacheImage(hash, data); err != nil {
			return err
		}
		res.ImagesDownloaded++
	}

	if item.StringField("imageData") != "" {
		e.tracker.SetEnabled(false)
		defer e.tracker.SetEnabled(true)
		item.ClearField("imageData")
		return e.store.PutRecord(ctx, syncwire.TableItems, item)
	}
	return nil
}

// uploadBlob deduplicates by content hash, then transfers bytes either to a
// presigned URL or through the server upload endpoint.
func (e *Engine) uploadBlob(ctx context.Context, hash string, data []byte, contentType string) (string, error) {
	presign, err := e.api.PresignUpload(ctx, &syncwire.PresignUploadRequest{
		Hash:        hash,
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		return "", err
	}
	if presign.AlreadyExists {
		return presign.ImageRef, nil
	}
	if presign.UploadURL != "" {
		if err := e.api.UploadPresigned(ctx, presign.UploadURL, data, contentType); err != nil {
			return "", err
		}
		return presign.ImageRef, nil
	}
	resp, err := e.api.UploadImage(ctx, hash, data, contentType)
	if err != nil {
		return "", err
	}
	return resp.ImageRef, nil
}

// UploadImageWithRetry is the import-path upload: a fixed small number of
// attempts with growing backoff, falling back to the original external URL
// as the reference when every attempt fails — degraded but available.
func (e *Engine) UploadImageWithRetry(ctx context.Context, data []byte, contentType, originalURL string) string {
	hash := hashBytes(data)
	var lastErr error
	for attempt := 0; attempt < uploadRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(uploadRetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return originalURL
			}
		}
		ref, err := e.uploadBlob(ctx, hash, data, contentType)
		if err == nil {
			return ref
		}
		lastErr = err
	}
	e.log.Warn(ctx, "image upload exhausted retries, keeping original URL",
		"url", originalURL, "error", lastErr)
	return originalURL
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// decodeImageData accepts raw base64 or a data URL.
func decodeImageData(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	if i := strings.Index(s, ";base64,"); i >= 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
