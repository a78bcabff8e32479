package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"filegate/pkg/tenants"

	"go.uber.org/zap"
)

func testTenant(url string) tenants.Tenant {
	return tenants.Tenant{
		ID:             "t1",
		Slug:           "acme",
		Plan:           "starter",
		Active:         true,
		WebhookURL:     url,
		WebhookSecret:  "whsec_test",
		WebhookEnabled: true,
	}
}

func testDispatcher(store Store, opts Options) *Dispatcher {
	log := zap.NewNop().Sugar()
	return NewDispatcher(store, tenants.NewMemoryProvider(log), log, opts)
}

func TestEnqueueSkipsUnconfiguredTenant(t *testing.T) {
	store := NewMemoryStore()
	d := testDispatcher(store, Options{})

	tnt := testTenant("")
	del, err := d.Enqueue(context.Background(), tnt, Event{Type: "job.completed", ID: "e1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if del != nil {
		t.Fatal("delivery created for tenant without webhook URL")
	}

	tnt = testTenant("https://hooks.example.com")
	tnt.WebhookEnabled = false
	if del, _ := d.Enqueue(context.Background(), tnt, Event{Type: "job.completed", ID: "e1"}); del != nil {
		t.Fatal("delivery created for tenant with webhooks disabled")
	}
}

func TestEnqueuePersistsSignedDelivery(t *testing.T) {
	store := NewMemoryStore()
	d := testDispatcher(store, Options{MaxAttempts: 5})

	ev := Event{
		Type:       "job.completed",
		ID:         "j1:job.completed",
		OccurredAt: time.Now().UTC(),
		Fields:     map[string]any{"job_id": "j1"},
	}
	del, err := d.Enqueue(context.Background(), testTenant("https://hooks.example.com"), ev)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if del.Status != StatusPending {
		t.Errorf("status: got %s", del.Status)
	}
	if del.MaxAttempts != 5 {
		t.Errorf("max attempts: got %d", del.MaxAttempts)
	}
	if !Verify(del.Payload, del.Signature, "whsec_test") {
		t.Error("persisted signature does not verify against payload")
	}

	list, _ := store.ListByTenant(context.Background(), "t1", 10)
	if len(list) != 1 || list[0].ID != del.ID {
		t.Fatalf("store contents: %v", list)
	}
}

func TestAttemptSuccess(t *testing.T) {
	var gotSig, gotEvent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig.Store(r.Header.Get("X-Webhook-Signature"))
		gotEvent.Store(r.Header.Get("X-Webhook-Event"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	d := testDispatcher(store, Options{Timeout: 2 * time.Second})

	del, err := d.Enqueue(context.Background(), testTenant(srv.URL), Event{
		Type: "job.completed", ID: "e1", OccurredAt: time.Now().UTC(),
		Fields: map[string]any{"job_id": "j1"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d.attempt(context.Background(), *del)

	list, _ := store.ListByTenant(context.Background(), "t1", 1)
	if list[0].Status != StatusSuccess {
		t.Fatalf("status: got %s want success", list[0].Status)
	}
	if list[0].DeliveredAt == nil {
		t.Error("delivered_at not set")
	}
	if gotSig.Load() != del.Signature {
		t.Errorf("signature header: got %v", gotSig.Load())
	}
	if gotEvent.Load() != "job.completed" {
		t.Errorf("event header: got %v", gotEvent.Load())
	}
	if m := d.Metrics(); m.SuccessTotal != 1 {
		t.Errorf("success counter: got %d", m.SuccessTotal)
	}
}

func TestAttemptExhaustsToFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	d := testDispatcher(store, Options{Timeout: 2 * time.Second, MaxAttempts: 3, BackoffBase: time.Minute})

	del, err := d.Enqueue(context.Background(), testTenant(srv.URL), Event{
		Type: "job.failed", ID: "e1", OccurredAt: time.Now().UTC(),
		Fields: map[string]any{"job_id": "j1"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	current := *del
	for i := 1; i <= 3; i++ {
		d.attempt(context.Background(), current)
		list, _ := store.ListByTenant(context.Background(), "t1", 1)
		current = list[0]
		if current.AttemptCount != i {
			t.Fatalf("after attempt %d: count %d", i, current.AttemptCount)
		}
		if i < 3 {
			if current.Status != StatusRetrying {
				t.Fatalf("after attempt %d: status %s want retrying", i, current.Status)
			}
			if current.NextRetryAt == nil {
				t.Fatalf("after attempt %d: no next_retry_at", i)
			}
		}
	}
	if current.Status != StatusFailed {
		t.Fatalf("final status: got %s want failed", current.Status)
	}
	if current.NextRetryAt != nil {
		t.Error("failed delivery still scheduled")
	}
	if current.LastStatusCode != http.StatusInternalServerError {
		t.Errorf("last status code: got %d", current.LastStatusCode)
	}
	if m := d.Metrics(); m.FailedTotal != 1 || m.RetryTotal != 2 {
		t.Errorf("counters: %+v", m)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	d := testDispatcher(NewMemoryStore(), Options{BackoffBase: time.Minute})
	if got := d.backoff(1); got != 2*time.Minute {
		t.Errorf("backoff(1): got %v", got)
	}
	if got := d.backoff(2); got != 4*time.Minute {
		t.Errorf("backoff(2): got %v", got)
	}
	if got := d.backoff(10); got != time.Hour {
		t.Errorf("backoff(10): got %v want cap", got)
	}
}

func TestClaimDueLeasesDeliveries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	if err := store.Insert(context.Background(), Delivery{
		ID: "d1", TenantID: "t1", Status: StatusPending, MaxAttempts: 3, CreatedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	due, err := store.ClaimDue(context.Background(), now, 90*time.Second, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("claimed %d deliveries", len(due))
	}

	// leased: a second sweep inside the lease window claims nothing
	again, _ := store.ClaimDue(context.Background(), now.Add(time.Second), 90*time.Second, 10)
	if len(again) != 0 {
		t.Fatalf("lease not honored, claimed %d", len(again))
	}

	// lease lapsed: the delivery becomes due again
	later, _ := store.ClaimDue(context.Background(), now.Add(2*time.Minute), 90*time.Second, 10)
	if len(later) != 1 {
		t.Fatalf("lapsed lease not reclaimed, got %d", len(later))
	}
}

func TestSendTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Webhook-Event") != "webhook.test" {
			t.Errorf("event header: %q", r.Header.Get("X-Webhook-Event"))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewMemoryStore()
	d := testDispatcher(store, Options{Timeout: 2 * time.Second})

	code, err := d.SendTest(context.Background(), testTenant(srv.URL))
	if err != nil {
		t.Fatalf("send test: %v", err)
	}
	if code != http.StatusNoContent {
		t.Errorf("status: got %d", code)
	}

	// nothing persisted for a test delivery
	list, _ := store.ListByTenant(context.Background(), "t1", 10)
	if len(list) != 0 {
		t.Fatalf("test delivery persisted: %v", list)
	}

	if _, err := d.SendTest(context.Background(), testTenant("")); err == nil {
		t.Error("unconfigured tenant should error")
	}
}
