// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // gateway-service
	OpsAddr  string // ops-service

	// Ops/admin bearer validation
	AdminIssuer   string
	AdminAudience string
	AdminJWKSURL  string

	// Plan catalog override (YAML); compiled-in defaults when empty
	PlanCatalogFile string

	// Webhook delivery tuning
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookBackoffBase time.Duration
	WebhookWorkers     int
	SweepInterval      time.Duration

	// Usage log retention for the prune job
	UsageRetention time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("FILEGATE_ENV", "dev"),
		HTTPAddr:           env("FILEGATE_HTTP_ADDR", ":8080"),
		OpsAddr:            env("FILEGATE_OPS_ADDR", ":8082"),
		AdminIssuer:        env("ADMIN_OIDC_ISSUER", ""),
		AdminAudience:      env("ADMIN_OIDC_AUDIENCE", "filegate-ops"),
		AdminJWKSURL:       env("ADMIN_JWKS_URL", ""),
		PlanCatalogFile:    env("PLAN_CATALOG_FILE", ""),
		WebhookTimeout:     envDur("WEBHOOK_TIMEOUT_SEC", 30) * time.Second,
		WebhookMaxAttempts: envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookBackoffBase: envDur("WEBHOOK_BACKOFF_BASE_SEC", 60) * time.Second,
		WebhookWorkers:     envInt("WEBHOOK_WORKERS", 4),
		SweepInterval:      envDur("WEBHOOK_SWEEP_INTERVAL_SEC", 30) * time.Second,
		UsageRetention:     envDur("USAGE_RETENTION_DAYS", 90) * 24 * time.Hour,
		RedisURL:           env("REDIS_URL", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory stores for dev")
	}
	if cfg.RedisURL == "" {
		log.Println("[WARN] REDIS_URL not set; using in-process rate-limit counters")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
