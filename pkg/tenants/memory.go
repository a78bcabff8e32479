// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memProvider struct {
	log *zap.SugaredLogger

	mu   sync.RWMutex
	byID map[string]*Tenant
}

// NewMemoryProvider returns an empty in-process provider (tests, dev).
func NewMemoryProvider(log *zap.SugaredLogger) Provider {
	return &memProvider{log: log, byID: map[string]*Tenant{}}
}

// NewMemoryProviderFromEnv seeds the provider from TENANT_SEED_JSON, same
// format as the Postgres seed.
func NewMemoryProviderFromEnv(log *zap.SugaredLogger) Provider {
	p := &memProvider{log: log, byID: map[string]*Tenant{}}
	seed := os.Getenv("TENANT_SEED_JSON")
	if seed == "" {
		return p
	}
	var entries []struct {
		ID, Slug, Name, Plan      string
		WebhookURL, WebhookSecret string
		ContactEmail              string
	}
	_ = json.Unmarshal([]byte(seed), &entries)
	for _, e := range entries {
		plan := e.Plan
		if plan == "" {
			plan = "free"
		}
		now := time.Now().UTC()
		p.byID[e.ID] = &Tenant{
			ID: e.ID, Slug: e.Slug, Name: e.Name, Plan: plan, Active: true,
			WebhookURL: e.WebhookURL, WebhookSecret: e.WebhookSecret,
			WebhookEnabled: e.WebhookURL != "", ContactEmail: e.ContactEmail,
			CreatedAt: now, UpdatedAt: now,
		}
	}
	return p
}

func (m *memProvider) ResolveByID(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.byID[id]; ok {
		return *t, nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memProvider) ResolveBySlug(ctx context.Context, slug string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.byID {
		if t.Slug == slug {
			return *t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (m *memProvider) Create(ctx context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memProvider) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = active
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memProvider) IncrementUsage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.MonthlyUsage++
	t.LifetimeRequests++
	now := time.Now().UTC()
	t.LastActivityAt = &now
	t.UpdatedAt = now
	return nil
}

func (m *memProvider) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.byID {
		if t.MonthlyUsage > 0 || t.QuotaWarnLevel > 0 {
			t.MonthlyUsage = 0
			t.QuotaWarnLevel = 0
			t.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (m *memProvider) SetQuotaWarnLevel(ctx context.Context, id string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.QuotaWarnLevel = level
	return nil
}

func (m *memProvider) UpdateWebhookConfig(ctx context.Context, id, url, secret string, enabled bool, payloadFilter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.WebhookURL, t.WebhookSecret, t.WebhookEnabled, t.WebhookPayloadFilter = url, secret, enabled, payloadFilter
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memProvider) ListActive(ctx context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Tenant
	for _, t := range m.byID {
		if t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}
