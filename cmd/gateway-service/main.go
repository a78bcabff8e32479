// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filegate/internal/gatewayapi"
	"filegate/internal/jobs"
	"filegate/internal/usage"
	"filegate/internal/webhooks"
	"filegate/pkg/config"
	"filegate/pkg/credentials"
	"filegate/pkg/db"
	"filegate/pkg/limiter"
	"filegate/pkg/logger"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var (
		prov      tenants.Provider
		credStore credentials.Store
		usageSt   usage.Store
		whStore   webhooks.Store
		jobStore  jobs.Store
	)
	if pool != nil {
		ctx := context.Background()
		if err := tenants.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "pkg", "tenants", "err", err)
		}
		if err := credentials.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "pkg", "credentials", "err", err)
		}
		if err := usage.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "pkg", "usage", "err", err)
		}
		if err := webhooks.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "pkg", "webhooks", "err", err)
		}
		if err := jobs.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "pkg", "jobs", "err", err)
		}
		if err := tenants.SeedFromEnv(ctx, pool, os.Getenv("TENANT_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
		prov = tenants.NewPostgresProvider(pool, log)
		credStore = credentials.NewPostgresStore(pool, log)
		usageSt = usage.NewPostgresStore(pool, log)
		whStore = webhooks.NewPostgresStore(pool, log)
		jobStore = jobs.NewPostgresStore(pool, log)
	} else {
		prov = tenants.NewMemoryProviderFromEnv(log)
		credStore = credentials.NewMemoryStore()
		usageSt = usage.NewMemoryStore()
		whStore = webhooks.NewMemoryStore()
		jobStore = jobs.NewMemoryStore()
	}

	var counter limiter.Counter
	if rdb != nil {
		counter = limiter.NewRedisCounter(rdb)
	} else {
		counter = limiter.NewMemoryCounter()
	}

	catalog := plans.Defaults()
	if cfg.PlanCatalogFile != "" {
		c, err := plans.LoadFile(cfg.PlanCatalogFile)
		if err != nil {
			log.Fatalw("plan catalog", "file", cfg.PlanCatalogFile, "err", err)
		}
		catalog = c
	}

	dispatcher := webhooks.NewDispatcher(whStore, prov, log, webhooks.Options{
		Timeout:       cfg.WebhookTimeout,
		MaxAttempts:   cfg.WebhookMaxAttempts,
		BackoffBase:   cfg.WebhookBackoffBase,
		SweepInterval: cfg.SweepInterval,
		Workers:       cfg.WebhookWorkers,
	})
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	meter := usage.NewMeter(usageSt, prov, catalog, log)
	jobSvc := jobs.NewService(jobStore, prov, dispatcher, jobs.StubProcessor{}, log)

	app := gatewayapi.New(log, cfg, gatewayapi.Deps{
		Tenants:     prov,
		Credentials: credStore,
		Catalog:     catalog,
		Limiter:     limiter.New(counter),
		Meter:       meter,
		Usage:       usageSt,
		Deliveries:  whStore,
		Dispatcher:  dispatcher,
		Jobs:        jobSvc,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
