// internal/jobs/postgres.go
package jobs

import (
	"context"

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

// EnsureSchema creates the jobs table. Idempotent.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id uuid PRIMARY KEY,
  tenant_id uuid NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
  kind text NOT NULL,
  status text NOT NULL DEFAULT 'queued',
  input_name text NOT NULL DEFAULT '',
  input_size bigint NOT NULL DEFAULT 0,
  result_url text NOT NULL DEFAULT '',
  error_text text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  started_at timestamptz,
  completed_at timestamptz
);
CREATE INDEX IF NOT EXISTS jobs_tenant_idx ON jobs(tenant_id, created_at DESC);
`)
	return err
}

func (s *pgStore) Insert(ctx context.Context, j Job) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO jobs(id,tenant_id,kind,status,input_name,input_size,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		j.ID, j.TenantID, j.Kind, string(j.Status), j.InputName, j.InputSize, j.CreatedAt)
	return err
}

func (s *pgStore) Get(ctx context.Context, tenantID, id string) (Job, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT id,tenant_id,kind,status,input_name,input_size,result_url,error_text,
		created_at,started_at,completed_at FROM jobs WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	var j Job
	var status string
	if err := row.Scan(&j.ID, &j.TenantID, &j.Kind, &status, &j.InputName, &j.InputSize, &j.ResultURL,
		&j.Error, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return Job{}, ErrNotFound
	}
	j.Status = Status(status)
	return j, nil
}

func (s *pgStore) Update(ctx context.Context, j Job) error {
	ct, err := s.dbPool.Exec(ctx, `UPDATE jobs SET status=$2, result_url=$3, error_text=$4,
		started_at=$5, completed_at=$6 WHERE id=$1`,
		j.ID, string(j.Status), j.ResultURL, j.Error, j.StartedAt, j.CompletedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
