package store

import (
	"context"
	"sync"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
)

// MemoryStore keeps the snapshot in process memory
type MemoryStore struct {
	mu       sync.Mutex
	snapshot *financing.Snapshot
	loadErr  error
	saveErr  error
	saves    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshot: financing.NewSnapshot()}
}

func (m *MemoryStore) Load(ctx context.Context) (*financing.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snapshot.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, snapshot *financing.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshot = snapshot.Clone()
	m.saves++
	return nil
}

// FailLoads makes every Load return err until called again with nil
func (m *MemoryStore) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// FailSaves makes every Save return err until called again with nil
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves counts successful writes
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
