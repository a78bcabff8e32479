// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  slug text UNIQUE NOT NULL,
  name text NOT NULL DEFAULT '',
  plan text NOT NULL DEFAULT 'free',
  active boolean NOT NULL DEFAULT true,
  monthly_usage bigint NOT NULL DEFAULT 0,
  monthly_override bigint,
  lifetime_requests bigint NOT NULL DEFAULT 0,
  webhook_url text NOT NULL DEFAULT '',
  webhook_secret text NOT NULL DEFAULT '',
  webhook_enabled boolean NOT NULL DEFAULT false,
  webhook_payload_filter text NOT NULL DEFAULT '',
  contact_email text NOT NULL DEFAULT '',
  quota_warn_level int NOT NULL DEFAULT 0,
  last_activity_at timestamptz,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS webhook_payload_filter text NOT NULL DEFAULT '';
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS quota_warn_level int NOT NULL DEFAULT 0;
`)
	return err
}

// SeedFromEnv ingests initial tenants from TENANT_SEED_JSON:
// [{"id":"...","slug":"...","name":"...","plan":"starter","webhook_url":"...","webhook_secret":"..."}]
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []struct {
		ID, Slug, Name, Plan      string
		WebhookURL, WebhookSecret string
		ContactEmail              string
	}
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		plan := e.Plan
		if plan == "" {
			plan = "free"
		}
		_, _ = dbPool.Exec(ctx, `INSERT INTO tenants(id,slug,name,plan,webhook_url,webhook_secret,webhook_enabled,contact_email)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		  ON CONFLICT (id) DO UPDATE SET slug=EXCLUDED.slug,name=EXCLUDED.name,plan=EXCLUDED.plan`,
			e.ID, e.Slug, e.Name, plan, e.WebhookURL, e.WebhookSecret, e.WebhookURL != "", e.ContactEmail)
	}
	return nil
}

const tenantCols = `id,slug,name,plan,active,monthly_usage,monthly_override,lifetime_requests,
webhook_url,webhook_secret,webhook_enabled,webhook_payload_filter,contact_email,quota_warn_level,
last_activity_at,created_at,updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Plan, &t.Active, &t.MonthlyUsage, &t.MonthlyOverride,
		&t.LifetimeRequests, &t.WebhookURL, &t.WebhookSecret, &t.WebhookEnabled, &t.WebhookPayloadFilter,
		&t.ContactEmail, &t.QuotaWarnLevel, &t.LastActivityAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (p *pgProvider) ResolveByID(ctx context.Context, id string) (Tenant, error) {
	return scanTenant(p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id))
}

func (p *pgProvider) ResolveBySlug(ctx context.Context, slug string) (Tenant, error) {
	return scanTenant(p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE slug=$1`, slug))
}

func (p *pgProvider) Create(ctx context.Context, t Tenant) error {
	_, err := p.dbPool.Exec(ctx, `INSERT INTO tenants(id,slug,name,plan,active,monthly_override,
		webhook_url,webhook_secret,webhook_enabled,webhook_payload_filter,contact_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.Slug, t.Name, t.Plan, t.Active, t.MonthlyOverride,
		t.WebhookURL, t.WebhookSecret, t.WebhookEnabled, t.WebhookPayloadFilter, t.ContactEmail)
	return err
}

func (p *pgProvider) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := p.dbPool.Exec(ctx, `UPDATE tenants SET active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage is a single atomic UPDATE so concurrent billable requests
// never lose counts.
func (p *pgProvider) IncrementUsage(ctx context.Context, id string) error {
	_, err := p.dbPool.Exec(ctx, `UPDATE tenants SET
		monthly_usage = monthly_usage + 1,
		lifetime_requests = lifetime_requests + 1,
		last_activity_at = NOW(),
		updated_at = NOW()
		WHERE id=$1`, id)
	return err
}

func (p *pgProvider) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	ct, err := p.dbPool.Exec(ctx, `UPDATE tenants SET monthly_usage=0, quota_warn_level=0, updated_at=NOW()
		WHERE monthly_usage > 0 OR quota_warn_level > 0`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (p *pgProvider) SetQuotaWarnLevel(ctx context.Context, id string, level int) error {
	_, err := p.dbPool.Exec(ctx, `UPDATE tenants SET quota_warn_level=$2, updated_at=NOW() WHERE id=$1`, id, level)
	return err
}

func (p *pgProvider) UpdateWebhookConfig(ctx context.Context, id, url, secret string, enabled bool, payloadFilter string) error {
	ct, err := p.dbPool.Exec(ctx, `UPDATE tenants SET webhook_url=$2, webhook_secret=$3, webhook_enabled=$4,
		webhook_payload_filter=$5, updated_at=NOW() WHERE id=$1`, id, url, secret, enabled, payloadFilter)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgProvider) ListActive(ctx context.Context) ([]Tenant, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+tenantCols+` FROM tenants WHERE active ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
