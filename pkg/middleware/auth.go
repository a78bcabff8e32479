// pkg/middleware/auth.go
package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"filegate/pkg/apierr"
	"filegate/pkg/credentials"
	"filegate/pkg/metrics"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"go.uber.org/zap"
)

// AuthConfig wires the authentication gateway.
type AuthConfig struct {
	Credentials credentials.Store
	Tenants     tenants.Provider
	Plans       *plans.Catalog
	// PublicPrefixes bypass authentication entirely (health, metrics, docs).
	PublicPrefixes []string
}

// APIKeyAuth intercepts every inbound tenant request: key extraction,
// prefix-indexed credential verification, tenant activation and monthly quota
// checks. On success a TenantContext is attached; on failure the request is
// rejected with a typed reason and logged as an audit event, never retried.
func APIKeyAuth(log *zap.SugaredLogger, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, cfg.PublicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractKey(r)
			if key == "" {
				reject(w, log, apierr.MissingCredential, "provide Authorization: Bearer <key> or X-API-Key", r, "")
				return
			}

			callerIP := CallerIP(r)
			now := time.Now().UTC()
			cred, err := credentials.VerifyKey(r.Context(), cfg.Credentials, key, callerIP, now)
			if err != nil {
				switch err {
				case credentials.ErrExpired:
					reject(w, log, apierr.CredentialExpired, "", r, cred.TenantID)
				case credentials.ErrIPNotAllowed:
					reject(w, log, apierr.IPNotAllowed, "", r, cred.TenantID)
				default:
					reject(w, log, apierr.InvalidCredential, "", r, "")
				}
				return
			}

			t, err := cfg.Tenants.ResolveByID(r.Context(), cred.TenantID)
			if err != nil {
				reject(w, log, apierr.InvalidCredential, "", r, cred.TenantID)
				return
			}
			if !t.Active {
				reject(w, log, apierr.TenantInactive, "", r, t.ID)
				return
			}

			plan := cfg.Plans.Lookup(t.Plan)
			perMinute := plan.PerMinute
			if cred.PerMinuteOverride > 0 {
				perMinute = cred.PerMinuteOverride
			}
			tc := TenantContext{
				TenantID:       t.ID,
				Slug:           t.Slug,
				Plan:           t.Plan,
				CredentialID:   cred.ID,
				Env:            cred.Env,
				PerMinuteLimit: perMinute,
				MonthlyUsage:   t.MonthlyUsage,
				MonthlyLimit:   t.MonthlyLimit(cfg.Plans),
				MonthReset:     nextMonthStart(now),
			}

			if t.OverQuota(cfg.Plans) {
				lim := *tc.MonthlyLimit
				hdr := apierr.RateHeaders{
					Limit: int64(perMinute), Remaining: int64(perMinute), Reset: now.Truncate(time.Minute).Add(time.Minute),
					MonthLimit: lim, MonthRemaining: lim - t.MonthlyUsage, MonthReset: tc.MonthReset,
				}
				hdr.Set(w)
				hdr.SetRetryAfter(w, now, tc.MonthReset)
				reject(w, log, apierr.QuotaExceeded, "monthly quota resets at "+tc.MonthReset.Format(time.RFC3339), r, t.ID)
				return
			}

			// Best effort; a failed touch must not fail the request.
			if err := cfg.Credentials.TouchLastUsed(r.Context(), cred.ID, now); err != nil {
				log.Debugw("credential touch failed", "credential", cred.ID, "err", err)
			}

			next.ServeHTTP(w, r.WithContext(WithTenantContext(r.Context(), tc)))
		})
	}
}

func isPublicPath(path string, prefixes []string) bool {
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// extractKey accepts both header forms.
func extractKey(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// CallerIP resolves the caller's address: first entry of a forwarded-for
// chain when present, else the direct peer address.
func CallerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// reject writes the typed rejection and records it as a security event.
func reject(w http.ResponseWriter, log *zap.SugaredLogger, reason apierr.Reason, details string, r *http.Request, tenantID string) {
	metrics.AuthRejectionsTotal.WithLabelValues(string(reason)).Inc()
	log.Warnw("request rejected",
		"reason", reason, "method", r.Method, "path", r.URL.Path,
		"ip", CallerIP(r), "tenant", tenantID, "request_id", r.Context().Value(CtxKeyRequestID))
	apierr.Write(w, reason, details)
}
