package opsapi

import (
	"encoding/json"
	"net/http"
	"time"

	"filegate/pkg/credentials"
	"filegate/pkg/tenants"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runQuotaReset zeroes every tenant's monthly counter. The external scheduler
// calls this on the first day of each billing cycle; it is safe to re-run
// (already-zero tenants are untouched) but must only run once per period.
func (a *App) runQuotaReset(w http.ResponseWriter, r *http.Request) {
	n, err := a.tenants.ResetMonthlyUsage(r.Context())
	if err != nil {
		a.log.Errorw("quota reset failed", "err", err)
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	a.log.Infow("monthly quota reset", "tenants", n)
	writeJSON(w, map[string]any{"reset": n}, http.StatusOK)
}

func (a *App) runPruneUsage(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().UTC().Add(-a.cfg.UsageRetention)
	n, err := a.usage.PruneOlderThan(r.Context(), cutoff)
	if err != nil {
		a.log.Errorw("usage prune failed", "err", err)
		http.Error(w, "prune failed", http.StatusInternalServerError)
		return
	}
	a.log.Infow("usage log pruned", "deleted", n, "cutoff", cutoff)
	writeJSON(w, map[string]any{"deleted": n}, http.StatusOK)
}

func (a *App) runSweepRetries(w http.ResponseWriter, r *http.Request) {
	n, err := a.dispatcher.Sweep(r.Context())
	if err != nil {
		a.log.Errorw("retry sweep failed", "err", err)
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"claimed": n}, http.StatusOK)
}

// runQuotaWarnings notifies tenants crossing the 80% and 100% thresholds,
// at most once per threshold per billing period.
func (a *App) runQuotaWarnings(w http.ResponseWriter, r *http.Request) {
	list, err := a.tenants.ListActive(r.Context())
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	var notified int
	for _, t := range list {
		lim := t.MonthlyLimit(a.catalog)
		if lim == nil || *lim == 0 {
			continue
		}
		pct := t.MonthlyUsage * 100 / *lim
		level := 0
		switch {
		case pct >= 100:
			level = 100
		case pct >= 80:
			level = 80
		}
		if level == 0 || level <= t.QuotaWarnLevel {
			continue
		}
		if err := a.notifier.QuotaWarning(r.Context(), t, level, t.MonthlyUsage, *lim); err != nil {
			a.log.Errorw("quota warning failed", "tenant", t.ID, "err", err)
			continue
		}
		if err := a.tenants.SetQuotaWarnLevel(r.Context(), t.ID, level); err != nil {
			a.log.Errorw("warn level update failed", "tenant", t.ID, "err", err)
		}
		notified++
	}
	writeJSON(w, map[string]any{"notified": notified}, http.StatusOK)
}

// createTenant provisions a tenant and issues its first credential. This is
// the approval step of an access request; the plaintext pair is returned once
// for hand-off to the merchant.
func (a *App) createTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug          string `json:"slug"`
		Name          string `json:"name"`
		Plan          string `json:"plan"`
		ContactEmail  string `json:"contact_email"`
		Env           string `json:"env"`
		WebhookURL    string `json:"webhook_url"`
		WebhookSecret string `json:"webhook_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" {
		http.Error(w, "slug is required", http.StatusBadRequest)
		return
	}
	if req.Plan == "" {
		req.Plan = "free"
	}
	t := tenants.Tenant{
		ID:             uuid.NewString(),
		Slug:           req.Slug,
		Name:           req.Name,
		Plan:           req.Plan,
		Active:         true,
		ContactEmail:   req.ContactEmail,
		WebhookURL:     req.WebhookURL,
		WebhookSecret:  req.WebhookSecret,
		WebhookEnabled: req.WebhookURL != "",
	}
	if err := a.tenants.Create(r.Context(), t); err != nil {
		a.log.Errorw("tenant create failed", "slug", req.Slug, "err", err)
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	cred, pt, err := credentials.Issue(r.Context(), a.credentials, credentials.IssueSpec{
		TenantID: t.ID,
		Env:      req.Env,
	})
	if err != nil {
		a.log.Errorw("initial credential issue failed", "tenant", t.ID, "err", err)
		http.Error(w, "credential issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tenant_id":  t.ID,
		"slug":       t.Slug,
		"plan":       t.Plan,
		"key_prefix": cred.KeyPrefix,
		"api_key":    pt.Key,
		"api_secret": pt.Secret,
	}, http.StatusCreated)
}

// setTenantActive soft-activates or deactivates a tenant; deactivation also
// revokes its live credentials. Tenants are never hard-deleted.
func (a *App) setTenantActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := a.tenants.SetActive(r.Context(), id, req.Active); err != nil {
		if err == tenants.ErrNotFound {
			http.Error(w, "unknown tenant", http.StatusNotFound)
			return
		}
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	if !req.Active {
		if err := a.credentials.RevokeAllForTenant(r.Context(), id); err != nil {
			a.log.Errorw("credential revoke on deactivate failed", "tenant", id, "err", err)
		}
	}
	writeJSON(w, map[string]any{"active": req.Active}, http.StatusOK)
}

func (a *App) getTenantUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := a.tenants.ResolveByID(r.Context(), id)
	if err != nil {
		http.Error(w, "unknown tenant", http.StatusNotFound)
		return
	}
	since := time.Now().UTC().AddDate(0, -1, 0)
	sum, err := a.usage.SummaryByTenant(r.Context(), id, since)
	if err != nil {
		http.Error(w, "summary failed", http.StatusInternalServerError)
		return
	}
	out := map[string]any{
		"tenant_id":     t.ID,
		"plan":          t.Plan,
		"monthly_usage": t.MonthlyUsage,
		"lifetime":      t.LifetimeRequests,
		"summary":       sum,
	}
	if lim := t.MonthlyLimit(a.catalog); lim != nil {
		out["monthly_limit"] = *lim
	}
	writeJSON(w, out, http.StatusOK)
}

// issueCredential creates an additional credential for a tenant (approver
// action), with optional expiry, IP allow-list and per-minute override.
func (a *App) issueCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.tenants.ResolveByID(r.Context(), id); err != nil {
		http.Error(w, "unknown tenant", http.StatusNotFound)
		return
	}
	var req struct {
		Env               string     `json:"env"`
		Label             string     `json:"label"`
		ExpiresAt         *time.Time `json:"expires_at"`
		AllowedIPs        []string   `json:"allowed_ips"`
		PerMinuteOverride int        `json:"per_minute_override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	cred, pt, err := credentials.Issue(r.Context(), a.credentials, credentials.IssueSpec{
		TenantID:          id,
		Env:               req.Env,
		Label:             req.Label,
		ExpiresAt:         req.ExpiresAt,
		AllowedIPs:        req.AllowedIPs,
		PerMinuteOverride: req.PerMinuteOverride,
	})
	if err != nil {
		a.log.Errorw("credential issue failed", "tenant", id, "err", err)
		http.Error(w, "issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"id":         cred.ID,
		"env":        cred.Env,
		"key_prefix": cred.KeyPrefix,
		"api_key":    pt.Key,
		"api_secret": pt.Secret,
	}, http.StatusCreated)
}
