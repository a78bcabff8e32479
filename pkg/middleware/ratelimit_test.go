package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filegate/pkg/limiter"

	"go.uber.org/zap"
)

func limitedHandler(lim *limiter.Limiter) http.Handler {
	mw := RateLimit(zap.NewNop().Sugar(), lim)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(tc TenantContext) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	return req.WithContext(WithTenantContext(req.Context(), tc))
}

func TestRateLimitAdmitsAndSetsHeaders(t *testing.T) {
	h := limitedHandler(limiter.New(limiter.NewMemoryCounter()))
	monthLim := int64(10000)
	tc := TenantContext{
		TenantID: "t1", PerMinuteLimit: 5,
		MonthlyUsage: 40, MonthlyLimit: &monthLim,
		MonthReset: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs(tc))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("limit header: %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("remaining header: %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Remaining-Month") != "9960" {
		t.Errorf("month remaining header: %q", rec.Header().Get("X-RateLimit-Remaining-Month"))
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	h := limitedHandler(limiter.New(limiter.NewMemoryCounter()))
	tc := TenantContext{TenantID: "t1", PerMinuteLimit: 2}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs(tc))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs(tc))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining header on 429: %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitSkipsPublicRequests(t *testing.T) {
	h := limitedHandler(limiter.New(limiter.NewMemoryCounter()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("public request: got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("rate headers set on unauthenticated request")
	}
}

type downCounter struct{}

func (downCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestRateLimitFailsClosed(t *testing.T) {
	h := limitedHandler(limiter.New(downCounter{}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs(TenantContext{TenantID: "t1", PerMinuteLimit: 5}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("store outage should reject, got %d", rec.Code)
	}
}
