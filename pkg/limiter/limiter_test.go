package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedLimiter(at time.Time) (*Limiter, *time.Time) {
	now := at
	l := &Limiter{counter: NewMemoryCounter(), now: func() time.Time { return now }}
	return l, &now
}

func TestAllowUpToLimit(t *testing.T) {
	l, _ := fixedLimiter(time.Date(2026, 3, 1, 10, 30, 15, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := l.Allow(ctx, "t1", 10)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected under limit", i+1)
		}
		if want := int64(10 - i - 1); res.Remaining != want {
			t.Errorf("request %d remaining: got %d want %d", i+1, res.Remaining, want)
		}
	}

	res, err := l.Allow(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if res.Allowed {
		t.Fatal("request 11 admitted over a limit of 10")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining after reject: got %d want 0", res.Remaining)
	}
}

func TestWindowResetsAtMinuteBoundary(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 30, 59, 0, time.UTC)
	l, now := fixedLimiter(start)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res, _ := l.Allow(ctx, "t1", 3); !res.Allowed {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if res, _ := l.Allow(ctx, "t1", 3); res.Allowed {
		t.Fatal("4th request admitted in same window")
	}

	// one second later a new wall-clock minute has begun
	*now = start.Add(time.Second)
	res, err := l.Allow(ctx, "t1", 3)
	if err != nil {
		t.Fatalf("allow in next window: %v", err)
	}
	if !res.Allowed {
		t.Fatal("fresh window did not reset the counter")
	}
	if res.Remaining != 2 {
		t.Errorf("fresh window remaining: got %d want 2", res.Remaining)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	l, _ := fixedLimiter(time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC))
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "t1", 1); !res.Allowed {
		t.Fatal("t1 first request rejected")
	}
	if res, _ := l.Allow(ctx, "t1", 1); res.Allowed {
		t.Fatal("t1 second request admitted")
	}
	if res, _ := l.Allow(ctx, "t2", 1); !res.Allowed {
		t.Fatal("t2 throttled by t1's window")
	}
}

func TestResetIsNextMinute(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 45, 123, time.UTC)
	l, _ := fixedLimiter(at)
	res, err := l.Allow(context.Background(), "t1", 5)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 1, 10, 31, 0, 0, time.UTC)
	if !res.Reset.Equal(want) {
		t.Fatalf("reset: got %v want %v", res.Reset, want)
	}
}

type failingCounter struct{}

func (failingCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestAllowSurfacesCounterError(t *testing.T) {
	l := New(failingCounter{})
	if _, err := l.Allow(context.Background(), "t1", 5); err == nil {
		t.Fatal("expected error from failing counter")
	}
}

func TestMemoryCounterExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &memCounter{m: map[string]*memEntry{}, now: func() time.Time { return now }}

	if n, _ := c.Incr(context.Background(), "k", time.Minute); n != 1 {
		t.Fatalf("first incr: got %d", n)
	}
	if n, _ := c.Incr(context.Background(), "k", time.Minute); n != 2 {
		t.Fatalf("second incr: got %d", n)
	}
	now = now.Add(2 * time.Minute)
	if n, _ := c.Incr(context.Background(), "k", time.Minute); n != 1 {
		t.Fatalf("post-expiry incr: got %d want 1", n)
	}
}
