// internal/jobs/memory.go
package jobs

import (
	"context"
	"sync"
)

type memStore struct {
	mu   sync.RWMutex
	byID map[string]*Job
}

// NewMemoryStore returns an in-process job store (tests, dev).
func NewMemoryStore() Store {
	return &memStore{byID: map[string]*Job{}}
}

func (m *memStore) Insert(ctx context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := j
	m.byID[j.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, tenantID, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.byID[id]
	if !ok || j.TenantID != tenantID {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

func (m *memStore) Update(ctx context.Context, j Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[j.ID]; !ok {
		return ErrNotFound
	}
	cp := j
	m.byID[j.ID] = &cp
	return nil
}
