package opsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"filegate/internal/usage"
	"filegate/internal/webhooks"
	"filegate/pkg/config"
	"filegate/pkg/credentials"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []struct {
		Tenant string
		Level  int
	}
}

func (n *recordingNotifier) QuotaWarning(ctx context.Context, t tenants.Tenant, level int, used, limit int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, struct {
		Tenant string
		Level  int
	}{t.ID, level})
	return nil
}

type opsFixture struct {
	handler  http.Handler
	tenants  tenants.Provider
	creds    credentials.Store
	usage    usage.Store
	notifier *recordingNotifier
}

func newOpsFixture(t *testing.T) *opsFixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	prov := tenants.NewMemoryProvider(log)
	credStore := credentials.NewMemoryStore()
	usageSt := usage.NewMemoryStore()
	whStore := webhooks.NewMemoryStore()
	notifier := &recordingNotifier{}

	cfg := config.Config{Env: "test", UsageRetention: 90 * 24 * time.Hour}
	app := New(log, cfg, Deps{
		Tenants:     prov,
		Credentials: credStore,
		Usage:       usageSt,
		Dispatcher:  webhooks.NewDispatcher(whStore, prov, log, webhooks.Options{}),
		Catalog:     plans.Defaults(),
		Notifier:    notifier,
	})
	return &opsFixture{
		handler: app.Handler(),
		tenants: prov, creds: credStore, usage: usageSt, notifier: notifier,
	}
}

func (f *opsFixture) admin(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Admin-Token", "dev-token")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthRequired(t *testing.T) {
	f := newOpsFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/jobs/quota-reset", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated admin call: got %d", rec.Code)
	}
}

func TestCreateTenantIssuesFirstCredential(t *testing.T) {
	f := newOpsFixture(t)
	rec := f.admin(http.MethodPost, "/admin/tenants",
		`{"slug":"acme","name":"Acme","plan":"starter","env":"live","contact_email":"ops@acme.test"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	key, _ := out["api_key"].(string)
	if !strings.HasPrefix(key, "fgw_live_") {
		t.Errorf("api key: got %q", key)
	}
	if out["api_secret"] == "" || out["api_secret"] == nil {
		t.Error("no secret returned")
	}

	id, _ := out["tenant_id"].(string)
	tnt, err := f.tenants.ResolveByID(context.Background(), id)
	if err != nil {
		t.Fatalf("tenant not persisted: %v", err)
	}
	if tnt.Plan != "starter" || !tnt.Active {
		t.Errorf("tenant: %+v", tnt)
	}

	// only hashes stored
	list, _ := f.creds.ListByTenant(context.Background(), id)
	if len(list) != 1 {
		t.Fatalf("credentials: %d", len(list))
	}
	if list[0].KeyHash == key {
		t.Error("plaintext key persisted")
	}
}

func TestCreateTenantRequiresSlug(t *testing.T) {
	f := newOpsFixture(t)
	if rec := f.admin(http.MethodPost, "/admin/tenants", `{"name":"No Slug"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestDeactivateRevokesCredentials(t *testing.T) {
	f := newOpsFixture(t)
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "t1", Slug: "acme", Plan: "free", Active: true})
	_, pt, err := credentials.Issue(context.Background(), f.creds, credentials.IssueSpec{TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}

	rec := f.admin(http.MethodPut, "/admin/tenants/t1/active", `{"active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	tnt, _ := f.tenants.ResolveByID(context.Background(), "t1")
	if tnt.Active {
		t.Error("tenant still active")
	}
	if _, err := credentials.VerifyKey(context.Background(), f.creds, pt.Key, "", time.Now().UTC()); err == nil {
		t.Error("credential still usable after deactivation")
	}
}

func TestQuotaResetJob(t *testing.T) {
	f := newOpsFixture(t)
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "t1", Slug: "acme", Plan: "free", Active: true, MonthlyUsage: 400})

	rec := f.admin(http.MethodPost, "/admin/jobs/quota-reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	tnt, _ := f.tenants.ResolveByID(context.Background(), "t1")
	if tnt.MonthlyUsage != 0 {
		t.Errorf("usage after reset: %d", tnt.MonthlyUsage)
	}
}

func TestPruneUsageJob(t *testing.T) {
	f := newOpsFixture(t)
	now := time.Now().UTC()
	_ = f.usage.Insert(context.Background(), usage.Record{ID: "old", TenantID: "t1", CreatedAt: now.Add(-100 * 24 * time.Hour)})
	_ = f.usage.Insert(context.Background(), usage.Record{ID: "fresh", TenantID: "t1", CreatedAt: now})

	rec := f.admin(http.MethodPost, "/admin/jobs/prune-usage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["deleted"] != float64(1) {
		t.Errorf("deleted: got %v", out["deleted"])
	}
}

func TestQuotaWarningsJob(t *testing.T) {
	f := newOpsFixture(t)
	// free plan: 500/month. 410 = 82%, 505 = over 100%.
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "warn80", Slug: "a", Plan: "free", Active: true, MonthlyUsage: 410})
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "warn100", Slug: "b", Plan: "free", Active: true, MonthlyUsage: 505})
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "quiet", Slug: "c", Plan: "free", Active: true, MonthlyUsage: 10})
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "already", Slug: "d", Plan: "free", Active: true, MonthlyUsage: 420, QuotaWarnLevel: 80})

	rec := f.admin(http.MethodPost, "/admin/jobs/quota-warnings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	levels := map[string]int{}
	for _, c := range f.notifier.calls {
		levels[c.Tenant] = c.Level
	}
	if levels["warn80"] != 80 {
		t.Errorf("warn80: got %d", levels["warn80"])
	}
	if levels["warn100"] != 100 {
		t.Errorf("warn100: got %d", levels["warn100"])
	}
	if _, ok := levels["quiet"]; ok {
		t.Error("tenant under threshold notified")
	}
	if _, ok := levels["already"]; ok {
		t.Error("tenant re-notified at same level")
	}

	// levels persisted so the next run stays quiet
	tnt, _ := f.tenants.ResolveByID(context.Background(), "warn80")
	if tnt.QuotaWarnLevel != 80 {
		t.Errorf("persisted level: %d", tnt.QuotaWarnLevel)
	}
	f.notifier.calls = nil
	f.admin(http.MethodPost, "/admin/jobs/quota-warnings", "")
	if len(f.notifier.calls) != 0 {
		t.Errorf("second run notified again: %v", f.notifier.calls)
	}
}

func TestSweepRetriesJobEmpty(t *testing.T) {
	f := newOpsFixture(t)
	rec := f.admin(http.MethodPost, "/admin/jobs/sweep-retries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["claimed"] != float64(0) {
		t.Errorf("claimed: got %v", out["claimed"])
	}
}

func TestGetTenantUsage(t *testing.T) {
	f := newOpsFixture(t)
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "t1", Slug: "acme", Plan: "starter", Active: true, MonthlyUsage: 12})
	_ = f.usage.Insert(context.Background(), usage.Record{TenantID: "t1", Billable: true, Cost: 0.002, CreatedAt: time.Now().UTC()})

	rec := f.admin(http.MethodGet, "/admin/tenants/t1/usage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["monthly_usage"] != float64(12) {
		t.Errorf("monthly usage: got %v", out["monthly_usage"])
	}
	if out["monthly_limit"] != float64(10000) {
		t.Errorf("monthly limit: got %v", out["monthly_limit"])
	}

	if rec := f.admin(http.MethodGet, "/admin/tenants/nope/usage", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tenant: got %d", rec.Code)
	}
}

func TestIssueCredentialForTenant(t *testing.T) {
	f := newOpsFixture(t)
	_ = f.tenants.Create(context.Background(), tenants.Tenant{ID: "t1", Slug: "acme", Plan: "free", Active: true})

	rec := f.admin(http.MethodPost, "/admin/tenants/t1/credentials",
		`{"env":"sandbox","label":"ci","allowed_ips":["10.0.0.0/8"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	key, _ := out["api_key"].(string)
	if !strings.HasPrefix(key, "fgw_sandbox_") {
		t.Errorf("key: got %q", key)
	}

	list, _ := f.creds.ListByTenant(context.Background(), "t1")
	if len(list) != 1 || list[0].Label != "ci" || len(list[0].AllowedIPs) != 1 {
		t.Fatalf("stored credential: %+v", list)
	}
}
