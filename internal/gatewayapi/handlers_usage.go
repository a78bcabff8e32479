package gatewayapi

import (
	"net/http"
	"strconv"
	"time"

	"filegate/pkg/apierr"
	"filegate/pkg/middleware"
)

// getUsageSummary reports the tenant's aggregated usage plus quota position,
// the self-service view of what the meter has recorded.
func (a *App) getUsageSummary(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	sum, err := a.usage.SummaryByTenant(r.Context(), tc.TenantID, since)
	if err != nil {
		a.log.Errorw("usage summary failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}

	t, err := a.tenants.ResolveByID(r.Context(), tc.TenantID)
	if err != nil {
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	quota := map[string]any{
		"plan":          t.Plan,
		"monthly_usage": t.MonthlyUsage,
		"lifetime":      t.LifetimeRequests,
	}
	if lim := t.MonthlyLimit(a.catalog); lim != nil {
		quota["monthly_limit"] = *lim
	}
	apierr.OK(w, map[string]any{"period_days": days, "summary": sum, "quota": quota}, http.StatusOK)
}

func (a *App) listPlans(w http.ResponseWriter, r *http.Request) {
	type planView struct {
		Name         string  `json:"name"`
		PerMinute    int     `json:"per_minute"`
		MonthlyLimit *int64  `json:"monthly_limit"`
		Cost         float64 `json:"per_request_cost"`
	}
	var out []planView
	for _, name := range []string{"free", "starter", "pro", "enterprise"} {
		p := a.catalog.Lookup(name)
		out = append(out, planView{Name: p.Name, PerMinute: p.PerMinute, MonthlyLimit: p.MonthlyLimit, Cost: p.PerRequestCost})
	}
	apierr.OK(w, out, http.StatusOK)
}
