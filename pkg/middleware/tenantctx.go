// pkg/middleware/tenantctx.go
package middleware

import (
	"context"
	"time"
)

// TenantContext is the read-only authenticated context the gateway attaches
// for downstream handlers. It never carries secrets or hashes.
type TenantContext struct {
	TenantID     string
	Slug         string
	Plan         string
	CredentialID string
	Env          string // sandbox | live

	// Limits resolved at auth time so later stages need no extra lookups.
	PerMinuteLimit int
	MonthlyUsage   int64
	MonthlyLimit   *int64 // nil = unlimited
	MonthReset     time.Time
}

type ctxTenantKey struct{}

func WithTenantContext(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, ctxTenantKey{}, tc)
}

// TenantFrom returns the authenticated tenant context, or ok=false on
// unauthenticated (public) paths.
func TenantFrom(ctx context.Context) (TenantContext, bool) {
	if v := ctx.Value(ctxTenantKey{}); v != nil {
		tc, ok := v.(TenantContext)
		return tc, ok
	}
	return TenantContext{}, false
}

// nextMonthStart returns the first instant of the next calendar month in UTC,
// the reset time disclosed in the monthly rate headers.
func nextMonthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
