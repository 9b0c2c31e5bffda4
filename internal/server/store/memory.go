package store

import (
	"context"
	"sync"

	"github.com/closetapp/closet-sync/internal/syncwire"
)

// MemoryStore keeps account documents in process memory. It backs tests and
// single-node development setups.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
}

type memoryAccount struct {
	mu     sync.Mutex
	tables map[string]map[string]*syncwire.Record
	meta   Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[string]*memoryAccount{}}
}

func (m *MemoryStore) account(name string) *memoryAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[name]
	if !ok {
		acc = &memoryAccount{tables: map[string]map[string]*syncwire.Record{}}
		m.accounts[name] = acc
	}
	return acc
}

func cloneTable(src map[string]*syncwire.Record) map[string]*syncwire.Record {
	out := make(map[string]*syncwire.Record, len(src))
	for id, rec := range src {
		out[id] = rec.Clone()
	}
	return out
}

func (m *MemoryStore) LoadTable(ctx context.Context, account, table string) (map[string]*syncwire.Record, error) {
	acc := m.account(account)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return cloneTable(acc.tables[table]), nil
}

func (m *MemoryStore) LoadMeta(ctx context.Context, account string) (*Meta, error) {
	acc := m.account(account)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	meta := acc.meta
	return &meta, nil
}

func (m *MemoryStore) Apply(ctx context.Context, account string, fn func(ctx context.Context, tx Tx) error) error {
	acc := m.account(account)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return fn(ctx, (*memoryTx)(acc))
}

type memoryTx memoryAccount

func (t *memoryTx) LoadTable(ctx context.Context, table string) (map[string]*syncwire.Record, error) {
	return cloneTable(t.tables[table]), nil
}

func (t *memoryTx) SaveTable(ctx context.Context, table string, records map[string]*syncwire.Record) error {
	t.tables[table] = cloneTable(records)
	return nil
}

func (t *memoryTx) LoadMeta(ctx context.Context) (*Meta, error) {
	meta := t.meta
	return &meta, nil
}

func (t *memoryTx) SaveMeta(ctx context.Context, meta *Meta) error {
	t.meta = *meta
	return nil
}
