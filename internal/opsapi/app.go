package opsapi

import (
	"context"
	"time"

	"filegate/internal/usage"
	"filegate/internal/webhooks"
	"filegate/pkg/config"
	"filegate/pkg/credentials"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// App is the ops-service container: scheduled-job triggers and tenant
// administration behind admin bearer auth.
type App struct {
	log         *zap.SugaredLogger
	cfg         config.Config
	tenants     tenants.Provider
	credentials credentials.Store
	usage       usage.Store
	dispatcher  *webhooks.Dispatcher
	catalog     *plans.Catalog
	notifier    Notifier

	adminJWKS   jwk.Set
	adminIssuer string
	adminAud    string
}

type Deps struct {
	Tenants     tenants.Provider
	Credentials credentials.Store
	Usage       usage.Store
	Dispatcher  *webhooks.Dispatcher
	Catalog     *plans.Catalog
	Notifier    Notifier
}

func New(log *zap.SugaredLogger, cfg config.Config, d Deps) *App {
	app := &App{
		log:         log,
		cfg:         cfg,
		tenants:     d.Tenants,
		credentials: d.Credentials,
		usage:       d.Usage,
		dispatcher:  d.Dispatcher,
		catalog:     d.Catalog,
		notifier:    d.Notifier,
		adminIssuer: cfg.AdminIssuer,
		adminAud:    cfg.AdminAudience,
	}
	if app.notifier == nil {
		app.notifier = NewLogNotifier(log)
	}
	if cfg.AdminJWKSURL != "" {
		app.adminJWKS = mustJWKS(cfg.AdminJWKSURL)
	}
	return app
}

func mustJWKS(url string) jwk.Set {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		panic(err)
	}
	return set
}
