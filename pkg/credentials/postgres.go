// pkg/credentials/postgres.go
package credentials

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the credentials table. Idempotent.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credentials (
  id uuid PRIMARY KEY,
  tenant_id uuid NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
  env text NOT NULL DEFAULT 'sandbox',
  label text NOT NULL DEFAULT '',
  key_hash text NOT NULL,
  secret_hash text NOT NULL,
  key_prefix text NOT NULL,
  active boolean NOT NULL DEFAULT true,
  expires_at timestamptz,
  revoked_at timestamptz,
  allowed_ips text[] NOT NULL DEFAULT '{}',
  per_minute_override int NOT NULL DEFAULT 0,
  last_used_at timestamptz,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS credentials_key_prefix_idx ON credentials(key_prefix);
CREATE INDEX IF NOT EXISTS credentials_tenant_idx ON credentials(tenant_id);
`)
	return err
}

const credCols = `id,tenant_id,env,label,key_hash,secret_hash,key_prefix,active,
expires_at,revoked_at,allowed_ips,per_minute_override,last_used_at,created_at`

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	if err := row.Scan(&c.ID, &c.TenantID, &c.Env, &c.Label, &c.KeyHash, &c.SecretHash, &c.KeyPrefix,
		&c.Active, &c.ExpiresAt, &c.RevokedAt, &c.AllowedIPs, &c.PerMinuteOverride,
		&c.LastUsedAt, &c.CreatedAt); err != nil {
		return Credential{}, err
	}
	return c, nil
}

func (s *pgStore) LookupByPrefix(ctx context.Context, prefix string) ([]Credential, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT `+credCols+` FROM credentials WHERE key_prefix=$1`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) Insert(ctx context.Context, c Credential) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO credentials(id,tenant_id,env,label,key_hash,secret_hash,key_prefix,
		active,expires_at,allowed_ips,per_minute_override,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.TenantID, c.Env, c.Label, c.KeyHash, c.SecretHash, c.KeyPrefix,
		c.Active, c.ExpiresAt, c.AllowedIPs, c.PerMinuteOverride, c.CreatedAt)
	return err
}

func (s *pgStore) Revoke(ctx context.Context, id string) error {
	ct, err := s.dbPool.Exec(ctx, `UPDATE credentials SET active=false, revoked_at=NOW() WHERE id=$1 AND revoked_at IS NULL`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE credentials SET last_used_at=$2 WHERE id=$1`, id, at)
	return err
}

func (s *pgStore) ListByTenant(ctx context.Context, tenantID string) ([]Credential, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT `+credCols+` FROM credentials WHERE tenant_id=$1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) RevokeAllForTenant(ctx context.Context, tenantID string) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE credentials SET active=false, revoked_at=NOW()
		WHERE tenant_id=$1 AND revoked_at IS NULL`, tenantID)
	return err
}
