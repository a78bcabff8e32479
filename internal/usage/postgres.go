// internal/usage/postgres.go
package usage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the usage log table. Idempotent.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS usage_records (
  id uuid PRIMARY KEY,
  tenant_id uuid NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
  credential_id uuid,
  endpoint text NOT NULL,
  method text NOT NULL,
  status_code int NOT NULL,
  caller_ip text NOT NULL DEFAULT '',
  request_bytes bigint NOT NULL DEFAULT 0,
  response_bytes bigint NOT NULL DEFAULT 0,
  latency_ms bigint NOT NULL DEFAULT 0,
  cost numeric(12,6) NOT NULL DEFAULT 0,
  billable boolean NOT NULL DEFAULT false,
  job_id text NOT NULL DEFAULT '',
  error_text text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS usage_records_tenant_created_idx ON usage_records(tenant_id, created_at DESC);
`)
	return err
}

func (s *pgStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO usage_records(id,tenant_id,credential_id,endpoint,method,status_code,
		caller_ip,request_bytes,response_bytes,latency_ms,cost,billable,job_id,error_text,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		rec.ID, rec.TenantID, nullIfEmpty(rec.CredentialID), rec.Endpoint, rec.Method, rec.Status,
		rec.CallerIP, rec.RequestBytes, rec.ResponseBytes, rec.LatencyMs, rec.Cost, rec.Billable,
		rec.JobID, rec.ErrorText, rec.CreatedAt)
	return err
}

func (s *pgStore) SummaryByTenant(ctx context.Context, tenantID string, since time.Time) (Summary, error) {
	var sum Summary
	err := s.dbPool.QueryRow(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN billable THEN 1 ELSE 0 END),0),
		COALESCE(SUM(cost),0)::float8,
		COALESCE(AVG(latency_ms)::bigint,0)
		FROM usage_records WHERE tenant_id=$1 AND created_at >= $2`, tenantID, since).
		Scan(&sum.Count, &sum.BillableCount, &sum.TotalCost, &sum.AvgLatencyMs)
	return sum, err
}

func (s *pgStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.dbPool.Exec(ctx, `DELETE FROM usage_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
