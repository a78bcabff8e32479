// internal/webhooks/postgres.go
package webhooks

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

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the deliveries table. Idempotent.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS webhook_deliveries (
  id uuid PRIMARY KEY,
  tenant_id uuid NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
  event_type text NOT NULL,
  event_id text NOT NULL,
  url text NOT NULL,
  payload bytea NOT NULL,
  signature text NOT NULL,
  status text NOT NULL DEFAULT 'pending',
  attempt_count int NOT NULL DEFAULT 0,
  max_attempts int NOT NULL DEFAULT 3,
  next_retry_at timestamptz,
  last_status_code int NOT NULL DEFAULT 0,
  last_error text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  delivered_at timestamptz
);
CREATE INDEX IF NOT EXISTS webhook_deliveries_due_idx ON webhook_deliveries(status, next_retry_at);
CREATE INDEX IF NOT EXISTS webhook_deliveries_tenant_idx ON webhook_deliveries(tenant_id, created_at DESC);
`)
	return err
}

const deliveryCols = `id,tenant_id,event_type,event_id,url,payload,signature,status,attempt_count,
max_attempts,next_retry_at,last_status_code,last_error,created_at,delivered_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	var status string
	if err := row.Scan(&d.ID, &d.TenantID, &d.EventType, &d.EventID, &d.URL, &d.Payload, &d.Signature,
		&status, &d.AttemptCount, &d.MaxAttempts, &d.NextRetryAt, &d.LastStatusCode, &d.LastError,
		&d.CreatedAt, &d.DeliveredAt); err != nil {
		return Delivery{}, err
	}
	d.Status = Status(status)
	return d, nil
}

func (s *pgStore) Insert(ctx context.Context, d Delivery) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO webhook_deliveries(id,tenant_id,event_type,event_id,url,payload,
		signature,status,attempt_count,max_attempts,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.TenantID, d.EventType, d.EventID, d.URL, d.Payload,
		d.Signature, string(d.Status), d.AttemptCount, d.MaxAttempts, d.CreatedAt)
	return err
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so concurrent sweeps never hand the
// same delivery to two workers; the lease written to next_retry_at keeps the
// row out of later scans until dispatch resolves it.
func (s *pgStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error) {
	rows, err := s.dbPool.Query(ctx, `UPDATE webhook_deliveries SET status='retrying', next_retry_at=$2
		WHERE id IN (
			SELECT id FROM webhook_deliveries
			WHERE status IN ('pending','retrying') AND (next_retry_at IS NULL OR next_retry_at <= $1)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryCols, now, now.Add(lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *pgStore) MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error {
	ct, err := s.dbPool.Exec(ctx, `UPDATE webhook_deliveries SET status='success', next_retry_at=NULL,
		last_status_code=$2, delivered_at=$3 WHERE id=$1 AND status <> 'success'`, id, statusCode, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) MarkRetrying(ctx context.Context, id string, attempts int, nextRetryAt time.Time, statusCode int, lastError string) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE webhook_deliveries SET status='retrying', attempt_count=$2,
		next_retry_at=$3, last_status_code=$4, last_error=$5 WHERE id=$1`, id, attempts, nextRetryAt, statusCode, lastError)
	return err
}

func (s *pgStore) MarkFailed(ctx context.Context, id string, attempts int, statusCode int, lastError string) error {
	_, err := s.dbPool.Exec(ctx, `UPDATE webhook_deliveries SET status='failed', attempt_count=$2,
		next_retry_at=NULL, last_status_code=$3, last_error=$4 WHERE id=$1`, id, attempts, statusCode, lastError)
	return err
}

func (s *pgStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]Delivery, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT `+deliveryCols+` FROM webhook_deliveries
		WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
