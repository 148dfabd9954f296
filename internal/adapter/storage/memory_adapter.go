package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

// MemoryAdapter keeps the snapshot in process memory.
type MemoryAdapter struct {
	mu   sync.Mutex
	snap *domain.Snapshot
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{snap: domain.NewSnapshot()}
}

func (m *MemoryAdapter) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

func (m *MemoryAdapter) Save(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Revision != m.snap.Revision {
		return ErrOptimisticLock
	}
	stored := snap.Clone()
	stored.Revision++
	m.snap = stored
	snap.Revision = stored.Revision
	return nil
}

// MemoryIdempotency is the in-process counterpart of the Redis idempotency keys.
// Keys do not expire.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: make(map[string]struct{})}
}

func (m *MemoryIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *MemoryIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
