// pkg/credentials/memory.go
package credentials

import (
	"context"
	"sync"
	"time"
)

type memStore struct {
	mu   sync.RWMutex
	byID map[string]*Credential
}

// NewMemoryStore returns an in-process credential store (tests, dev).
func NewMemoryStore() Store {
	return &memStore{byID: map[string]*Credential{}}
}

func (m *memStore) LookupByPrefix(ctx context.Context, prefix string) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Credential
	for _, c := range m.byID {
		if c.KeyPrefix == prefix {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memStore) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.RevokedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.Active = false
	c.RevokedAt = &now
	return nil
}

func (m *memStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byID[id]; ok {
		c.LastUsedAt = &at
	}
	return nil
}

func (m *memStore) ListByTenant(ctx context.Context, tenantID string) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Credential
	for _, c := range m.byID {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) RevokeAllForTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, c := range m.byID {
		if c.TenantID == tenantID && c.RevokedAt == nil {
			c.Active = false
			c.RevokedAt = &now
		}
	}
	return nil
}
