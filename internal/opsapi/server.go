package opsapi

import (
	"net/http"

	"filegate/pkg/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler builds the ops HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(a.adminAuth)
		// scheduled-job triggers (external scheduler hits these)
		ar.Post("/jobs/quota-reset", a.runQuotaReset)
		ar.Post("/jobs/prune-usage", a.runPruneUsage)
		ar.Post("/jobs/sweep-retries", a.runSweepRetries)
		ar.Post("/jobs/quota-warnings", a.runQuotaWarnings)
		// tenant administration
		ar.Post("/tenants", a.createTenant)
		ar.Put("/tenants/{id}/active", a.setTenantActive)
		ar.Get("/tenants/{id}/usage", a.getTenantUsage)
		ar.Post("/tenants/{id}/credentials", a.issueCredential)
	})

	return r
}
