package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// The image cache keeps downloaded blobs on disk keyed by content hash, so
// raw bytes never sit inside record documents longer than one sync pass.

// CacheImage writes image bytes under their content hash. The write goes
// through a temp file and rename so a crash never leaves a torn blob.
func (s *Store) CacheImage(hash string, data []byte) error {
	if s.imageDir == "" {
		return fmt.Errorf("image cache dir not configured")
	}
	tmp, err := os.CreateTemp(s.imageDir, "img-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.imagePath(hash)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}

// CachedImage returns the cached bytes for a hash, or nil when absent.
func (s *Store) CachedImage(hash string) ([]byte, error) {
	data, err := os.ReadFile(s.imagePath(hash))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached image: %w", err)
	}
	return data, nil
}

// HasCachedImage reports whether a blob for hash is cached locally.
func (s *Store) HasCachedImage(hash string) bool {
	_, err := os.Stat(s.imagePath(hash))
	return err == nil
}

func (s *Store) imagePath(hash string) string {
	return filepath.Join(s.imageDir, hash)
}
