package service

import (
	"context"
	"fmt"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/server/blob"
	"github.com/closetapp/closet-sync/internal/server/config"
	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

type ImageService struct {
	blobs blob.BlobStore
	quota config.QuotaConfig
	log   logging.Logger
}

func NewImageService(blobs blob.BlobStore, quota config.QuotaConfig, log logging.Logger) *ImageService {
	return &ImageService{blobs: blobs, quota: quota, log: log}
}

// Presign answers the client's dedup check. An already-stored hash needs no
// transfer; otherwise the response carries a direct-upload URL when the
// backend supports presigning, or leaves it empty so the client falls back
// to the upload endpoint.
func (s *ImageService) Presign(ctx context.Context, account string, req *syncwire.PresignUploadRequest) (*syncwire.PresignUploadResponse, error) {
	if s.quota.MaxImageBytes > 0 && req.Size > s.quota.MaxImageBytes {
		return nil, fmt.Errorf("image of %d bytes: %w", req.Size, shared.ErrImageTooLarge)
	}

	exists, err := s.blobs.Exists(ctx, account, req.Hash)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", req.Hash, err)
	}
	if exists {
		return &syncwire.PresignUploadResponse{
			Success:       true,
			AlreadyExists: true,
			ImageRef:      syncwire.ImageRef(account, req.Hash),
		}, nil
	}

	if err := s.checkStorage(ctx, account, req.Size); err != nil {
		return nil, err
	}

	url, err := s.blobs.PresignPut(ctx, account, req.Hash, req.ContentType, req.Size)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", req.Hash, err)
	}
	return &syncwire.PresignUploadResponse{
		Success:   true,
		ImageRef:  syncwire.ImageRef(account, req.Hash),
		UploadURL: url,
	}, nil
}

// Upload stores bytes through the server. The blob store re-verifies the
// hash before writing, so a corrupt or mislabeled body never lands.
func (s *ImageService) Upload(ctx context.Context, account, hash string, data []byte, contentType string) (*syncwire.UploadResponse, error) {
	if s.quota.MaxImageBytes > 0 && int64(len(data)) > s.quota.MaxImageBytes {
		return nil, fmt.Errorf("image of %d bytes: %w", len(data), shared.ErrImageTooLarge)
	}

	exists, err := s.blobs.Exists(ctx, account, hash)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.checkStorage(ctx, account, int64(len(data))); err != nil {
			return nil, err
		}
	}

	ref, err := s.blobs.Put(ctx, account, hash, data, contentType)
	if err != nil {
		return nil, err
	}
	return &syncwire.UploadResponse{Success: true, ImageRef: ref}, nil
}

func (s *ImageService) Check(ctx context.Context, account, hash string) (bool, error) {
	return s.blobs.Exists(ctx, account, hash)
}

// Download is the sole per-object access control point: the reference must
// live under the requesting account's prefix, since the object store itself
// has no ACLs.
func (s *ImageService) Download(ctx context.Context, account, ref string) ([]byte, error) {
	if !syncwire.AccountOwnsRef(account, ref) {
		return nil, fmt.Errorf("ref %q: %w", ref, shared.ErrForbidden)
	}
	return s.blobs.Get(ctx, ref)
}

func (s *ImageService) Delete(ctx context.Context, account, hash string) error {
	return s.blobs.Delete(ctx, account, hash)
}

func (s *ImageService) checkStorage(ctx context.Context, account string, size int64) error {
	if s.quota.MaxStorageBytes <= 0 {
		return nil
	}
	usage, err := s.blobs.Usage(ctx, account)
	if err != nil {
		return fmt.Errorf("storage usage: %w", err)
	}
	if usage+size > s.quota.MaxStorageBytes {
		return fmt.Errorf("storage limit %d bytes reached: %w",
			s.quota.MaxStorageBytes, shared.ErrQuotaExceeded)
	}
	return nil
}
