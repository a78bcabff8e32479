// pkg/limiter/limiter.go
package limiter

import (
	"context"
	"fmt"
	"time"
)

// Counter is a shared increment-with-initialize counter. Incr must be a
// single atomic round trip: the first call on a key creates it with ttl,
// later calls increment it, and the post-increment value is returned.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Result describes one admission decision for the rate headers.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time // start of the next wall-clock minute
}

// Limiter enforces a fixed per-minute window keyed by tenant. Windows reset
// at wall-clock minute boundaries rather than rolling from the first request,
// which admits up to 2x the limit across a boundary; that trade-off is
// deliberate and kept.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

func New(counter Counter) *Limiter {
	return &Limiter{counter: counter, now: time.Now}
}

// windowKey buckets by unix minute so a new window starts automatically at
// the boundary; the entry's TTL just garbage-collects old buckets.
func windowKey(tenantID string, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", tenantID, now.Unix()/60)
}

// nextMinute returns the start of the following wall-clock minute.
func nextMinute(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}

// Allow counts the request against the tenant's current minute window.
// An error means the backing store is unreachable; the gateway fails closed
// and surfaces it rather than under-billing.
func (l *Limiter) Allow(ctx context.Context, tenantID string, limit int) (Result, error) {
	now := l.now().UTC()
	res := Result{Limit: int64(limit), Reset: nextMinute(now)}
	n, err := l.counter.Incr(ctx, windowKey(tenantID, now), 2*time.Minute)
	if err != nil {
		return res, err
	}
	res.Allowed = n <= int64(limit)
	res.Remaining = int64(limit) - n
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}
