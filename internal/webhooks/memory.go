// internal/webhooks/memory.go
package webhooks

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu   sync.Mutex
	byID map[string]*Delivery
}

// NewMemoryStore returns an in-process delivery store (tests, dev).
func NewMemoryStore() Store {
	return &memStore{byID: map[string]*Delivery{}}
}

func (m *memStore) Insert(ctx context.Context, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := d
	m.byID[d.ID] = &cp
	return nil
}

func (m *memStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*Delivery
	for _, d := range m.byID {
		if d.Status != StatusPending && d.Status != StatusRetrying {
			continue
		}
		if d.NextRetryAt != nil && d.NextRetryAt.After(now) {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]Delivery, 0, len(due))
	for _, d := range due {
		leased := now.Add(lease)
		d.Status = StatusRetrying
		d.NextRetryAt = &leased
		out = append(out, *d)
	}
	return out, nil
}

func (m *memStore) MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok || d.Status == StatusSuccess {
		return ErrNotFound
	}
	d.Status = StatusSuccess
	d.NextRetryAt = nil
	d.LastStatusCode = statusCode
	d.DeliveredAt = &at
	return nil
}

func (m *memStore) MarkRetrying(ctx context.Context, id string, attempts int, nextRetryAt time.Time, statusCode int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = StatusRetrying
	d.AttemptCount = attempts
	d.NextRetryAt = &nextRetryAt
	d.LastStatusCode = statusCode
	d.LastError = lastError
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id string, attempts int, statusCode int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = StatusFailed
	d.AttemptCount = attempts
	d.NextRetryAt = nil
	d.LastStatusCode = statusCode
	d.LastError = lastError
	return nil
}

func (m *memStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Delivery
	for _, d := range m.byID {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
