package gatewayapi

import (
	"net/http"

	"filegate/internal/jobs"
	"filegate/internal/usage"
	"filegate/internal/webhooks"
	"filegate/pkg/config"
	"filegate/pkg/credentials"
	"filegate/pkg/limiter"
	"filegate/pkg/middleware"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App is the gateway application container: shared deps and config only,
// request-scoped work goes through context.
type App struct {
	log         *zap.SugaredLogger
	cfg         config.Config
	tenants     tenants.Provider
	credentials credentials.Store
	catalog     *plans.Catalog
	limiter     *limiter.Limiter
	meter       *usage.Meter
	usage       usage.Store
	deliveries  webhooks.Store
	dispatcher  *webhooks.Dispatcher
	jobs        *jobs.Service
}

type Deps struct {
	Tenants     tenants.Provider
	Credentials credentials.Store
	Catalog     *plans.Catalog
	Limiter     *limiter.Limiter
	Meter       *usage.Meter
	Usage       usage.Store
	Deliveries  webhooks.Store
	Dispatcher  *webhooks.Dispatcher
	Jobs        *jobs.Service
}

func New(log *zap.SugaredLogger, cfg config.Config, d Deps) *App {
	return &App{
		log:         log,
		cfg:         cfg,
		tenants:     d.Tenants,
		credentials: d.Credentials,
		catalog:     d.Catalog,
		limiter:     d.Limiter,
		meter:       d.Meter,
		usage:       d.Usage,
		deliveries:  d.Deliveries,
		dispatcher:  d.Dispatcher,
		jobs:        d.Jobs,
	}
}

// Handler builds the HTTP handler: every tenant route goes through the full
// auth -> rate-limit -> meter chain; public paths bypass the gateway via the
// auth middleware's allow-list.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing(a.cfg))
	r.Use(middleware.APIKeyAuth(a.log, middleware.AuthConfig{
		Credentials:    a.credentials,
		Tenants:        a.tenants,
		Plans:          a.catalog,
		PublicPrefixes: []string{"/v1/public/"},
	}))
	r.Use(middleware.RateLimit(a.log, a.limiter))
	r.Use(middleware.Meter(a.meter))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v1/public/plans", a.listPlans)

	r.Route("/v1", func(vr chi.Router) {
		vr.Post("/jobs", a.createJob)
		vr.Get("/jobs/{id}", a.getJob)
		vr.Get("/usage/summary", a.getUsageSummary)
		vr.Get("/webhooks/deliveries", a.listDeliveries)
		vr.Put("/webhooks/config", a.putWebhookConfig)
		vr.Post("/webhooks/test", a.testWebhook)
		vr.Get("/credentials", a.listCredentials)
		vr.Post("/credentials", a.rotateCredential)
		vr.Post("/credentials/rotate", a.rotateCredential)
	})

	return r
}
