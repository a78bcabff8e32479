// pkg/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"time"

	"filegate/pkg/apierr"
	"filegate/pkg/limiter"
	"filegate/pkg/metrics"

	"go.uber.org/zap"
)

// RateLimit enforces the per-minute window for the authenticated tenant.
// Rate headers are set on success and on 429 alike. A counter-store error
// fails closed: the request is rejected as InternalError instead of being
// admitted unbilled.
func RateLimit(log *zap.SugaredLogger, lim *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := TenantFrom(r.Context())
			if !ok {
				// public path, nothing to limit
				next.ServeHTTP(w, r)
				return
			}

			res, err := lim.Allow(r.Context(), tc.TenantID, tc.PerMinuteLimit)
			if err != nil {
				log.Errorw("rate-limit store unavailable", "tenant", tc.TenantID, "err", err)
				apierr.Write(w, apierr.InternalError, "rate limiter unavailable")
				return
			}

			hdr := apierr.RateHeaders{
				Limit:      res.Limit,
				Remaining:  res.Remaining,
				Reset:      res.Reset,
				MonthReset: tc.MonthReset,
			}
			if tc.MonthlyLimit != nil {
				hdr.MonthLimit = *tc.MonthlyLimit
				hdr.MonthRemaining = *tc.MonthlyLimit - tc.MonthlyUsage
			}
			hdr.Set(w)

			if !res.Allowed {
				now := time.Now().UTC()
				hdr.SetRetryAfter(w, now, res.Reset)
				metrics.AuthRejectionsTotal.WithLabelValues(string(apierr.RateLimitExceeded)).Inc()
				log.Warnw("rate limit exceeded", "tenant", tc.TenantID, "limit", res.Limit, "reset", res.Reset)
				apierr.Write(w, apierr.RateLimitExceeded, "window resets at "+res.Reset.Format(time.RFC3339))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
