package blob

import (
	"context"
	"sync"

	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

// MemoryBlobStore backs tests and development. It cannot presign.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte // ref -> bytes
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[string][]byte{}}
}

func (m *MemoryBlobStore) Put(ctx context.Context, account, hash string, data []byte, contentType string) (string, error) {
	if hashOf(data) != hash {
		return "", shared.ErrHashMismatch
	}
	ref := syncwire.ImageRef(account, hash)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobStore) Exists(ctx context.Context, account, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[syncwire.ImageRef(account, hash)]
	return ok, nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, account, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, syncwire.ImageRef(account, hash))
	return nil
}

func (m *MemoryBlobStore) PresignPut(ctx context.Context, account, hash, contentType string, size int64) (string, error) {
	return "", nil
}

func (m *MemoryBlobStore) Usage(ctx context.Context, account string) (int64, error) {
	prefix := account + "/images/"
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for ref, data := range m.blobs {
		if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
			total += int64(len(data))
		}
	}
	return total, nil
}
