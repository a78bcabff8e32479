package usage

import (
	"context"
	"strings"
	"testing"
	"time"

	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"go.uber.org/zap"
)

func TestObserveBillable(t *testing.T) {
	log := zap.NewNop().Sugar()
	store := NewMemoryStore()
	prov := tenants.NewMemoryProvider(log)
	if err := prov.Create(context.Background(), tenants.Tenant{ID: "t1", Plan: "pro", Active: true}); err != nil {
		t.Fatal(err)
	}
	m := NewMeter(store, prov, plans.Defaults(), log)

	m.Observe(context.Background(), "pro", Record{
		TenantID: "t1", Endpoint: "/v1/jobs", Method: "POST", Status: 202, Billable: true,
	})

	sum, _ := store.SummaryByTenant(context.Background(), "t1", time.Now().Add(-time.Minute))
	if sum.BillableCount != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if sum.TotalCost != 0.0015 {
		t.Errorf("cost: got %v want pro rate", sum.TotalCost)
	}
	tnt, _ := prov.ResolveByID(context.Background(), "t1")
	if tnt.MonthlyUsage != 1 {
		t.Errorf("monthly usage: got %d", tnt.MonthlyUsage)
	}
}

func TestObserveNonBillableSkipsCounters(t *testing.T) {
	log := zap.NewNop().Sugar()
	store := NewMemoryStore()
	prov := tenants.NewMemoryProvider(log)
	if err := prov.Create(context.Background(), tenants.Tenant{ID: "t1", Plan: "pro", Active: true}); err != nil {
		t.Fatal(err)
	}
	m := NewMeter(store, prov, plans.Defaults(), log)

	m.Observe(context.Background(), "pro", Record{TenantID: "t1", Status: 502, Billable: false})

	sum, _ := store.SummaryByTenant(context.Background(), "t1", time.Now().Add(-time.Minute))
	if sum.Count != 1 || sum.BillableCount != 0 || sum.TotalCost != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	tnt, _ := prov.ResolveByID(context.Background(), "t1")
	if tnt.MonthlyUsage != 0 {
		t.Errorf("monthly usage advanced: %d", tnt.MonthlyUsage)
	}
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("x", maxErrorText+100)
	if got := TruncateError(long); len(got) != maxErrorText {
		t.Errorf("length: got %d", len(got))
	}
	if got := TruncateError("short"); got != "short" {
		t.Errorf("short text mangled: %q", got)
	}
}

func TestPruneOlderThan(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	old := Record{ID: "old", TenantID: "t1", CreatedAt: now.Add(-100 * 24 * time.Hour)}
	fresh := Record{ID: "fresh", TenantID: "t1", CreatedAt: now}
	_ = store.Insert(context.Background(), old)
	_ = store.Insert(context.Background(), fresh)

	n, err := store.PruneOlderThan(context.Background(), now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned %d want 1", n)
	}
	sum, _ := store.SummaryByTenant(context.Background(), "t1", time.Time{})
	if sum.Count != 1 {
		t.Fatalf("remaining: %+v", sum)
	}
}
