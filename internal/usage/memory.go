// internal/usage/memory.go
package usage

import (
	"context"
	"sync"
	"time"
)

type memStore struct {
	mu   sync.RWMutex
	recs []Record
}

// NewMemoryStore returns an in-process usage store (tests, dev).
func NewMemoryStore() Store {
	return &memStore{}
}

func (m *memStore) Insert(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) SummaryByTenant(ctx context.Context, tenantID string, since time.Time) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum Summary
	var latency int64
	for _, r := range m.recs {
		if r.TenantID != tenantID || r.CreatedAt.Before(since) {
			continue
		}
		sum.Count++
		latency += r.LatencyMs
		if r.Billable {
			sum.BillableCount++
			sum.TotalCost += r.Cost
		}
	}
	if sum.Count > 0 {
		sum.AvgLatencyMs = latency / sum.Count
	}
	return sum, nil
}

func (m *memStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.recs[:0]
	var n int64
	for _, r := range m.recs {
		if r.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.recs = kept
	return n, nil
}
