package tenants

import (
	"context"
	"errors"
	"testing"

	"filegate/pkg/plans"

	"go.uber.org/zap"
)

func memWith(t *testing.T, list ...Tenant) Provider {
	t.Helper()
	p := NewMemoryProvider(zap.NewNop().Sugar())
	for _, tn := range list {
		if err := p.Create(context.Background(), tn); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestResolve(t *testing.T) {
	p := memWith(t, Tenant{ID: "t1", Slug: "acme", Plan: "free", Active: true})

	if got, err := p.ResolveByID(context.Background(), "t1"); err != nil || got.Slug != "acme" {
		t.Fatalf("by id: %v %v", got, err)
	}
	if got, err := p.ResolveBySlug(context.Background(), "acme"); err != nil || got.ID != "t1" {
		t.Fatalf("by slug: %v %v", got, err)
	}
	if _, err := p.ResolveByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestIncrementUsage(t *testing.T) {
	p := memWith(t, Tenant{ID: "t1", Plan: "free", Active: true})
	for i := 0; i < 3; i++ {
		if err := p.IncrementUsage(context.Background(), "t1"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := p.ResolveByID(context.Background(), "t1")
	if got.MonthlyUsage != 3 || got.LifetimeRequests != 3 {
		t.Fatalf("counters: monthly %d lifetime %d", got.MonthlyUsage, got.LifetimeRequests)
	}
	if got.LastActivityAt == nil {
		t.Error("last activity not set")
	}
}

func TestResetMonthlyUsageKeepsLifetime(t *testing.T) {
	p := memWith(t,
		Tenant{ID: "t1", Plan: "free", Active: true},
		Tenant{ID: "t2", Plan: "free", Active: true},
	)
	_ = p.IncrementUsage(context.Background(), "t1")
	_ = p.SetQuotaWarnLevel(context.Background(), "t1", 80)

	n, err := p.ResetMonthlyUsage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reset count: got %d want 1", n)
	}
	got, _ := p.ResolveByID(context.Background(), "t1")
	if got.MonthlyUsage != 0 {
		t.Errorf("monthly usage: got %d", got.MonthlyUsage)
	}
	if got.LifetimeRequests != 1 {
		t.Errorf("lifetime must survive reset: got %d", got.LifetimeRequests)
	}
	if got.QuotaWarnLevel != 0 {
		t.Errorf("warn level: got %d", got.QuotaWarnLevel)
	}
}

func TestMonthlyLimitOverride(t *testing.T) {
	cat := plans.Defaults()
	override := int64(42)

	tnt := Tenant{ID: "t1", Plan: "starter"}
	if lim := tnt.MonthlyLimit(cat); lim == nil || *lim != 10000 {
		t.Errorf("plan limit: got %v", lim)
	}

	tnt.MonthlyOverride = &override
	if lim := tnt.MonthlyLimit(cat); lim == nil || *lim != 42 {
		t.Errorf("override limit: got %v", lim)
	}

	tnt.MonthlyUsage = 42
	if !tnt.OverQuota(cat) {
		t.Error("usage at override ceiling should be over quota")
	}

	ent := Tenant{ID: "t2", Plan: "enterprise", MonthlyUsage: 1 << 40}
	if ent.OverQuota(cat) {
		t.Error("unlimited plan can never be over quota")
	}
}

func TestUpdateWebhookConfig(t *testing.T) {
	p := memWith(t, Tenant{ID: "t1", Plan: "free", Active: true})
	err := p.UpdateWebhookConfig(context.Background(), "t1", "https://hooks.example.com", "whsec_x", true, "{id: job_id}")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := p.ResolveByID(context.Background(), "t1")
	if !got.WebhooksConfigured() || got.WebhookPayloadFilter != "{id: job_id}" {
		t.Fatalf("config: %+v", got)
	}
}

func TestListActive(t *testing.T) {
	p := memWith(t,
		Tenant{ID: "t1", Plan: "free", Active: true},
		Tenant{ID: "t2", Plan: "free", Active: false},
	)
	list, err := p.ListActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "t1" {
		t.Fatalf("active list: %v", list)
	}
}
