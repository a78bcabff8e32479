package webhooks

import (
	"context"
	"errors"
	"time"
)

// Status is the delivery state machine: pending -> (success | retrying -> ...
// -> success | failed). success and failed are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
)

// ErrNotFound is returned when no delivery matches the lookup.
var ErrNotFound = errors.New("delivery not found")

// Delivery is one attempted (and possibly retried) notification of a tenant
// endpoint about a domain event. Payload and signature are fixed at creation
// so every retry sends identical bytes.
type Delivery struct {
	ID        string // uuid
	TenantID  string
	EventType string // job.completed, job.failed, ...
	EventID   string // stable identifier for receiver-side deduplication

	URL       string
	Payload   []byte // canonical JSON, stable key order
	Signature string // hex HMAC-SHA256 of Payload with the tenant secret

	Status       Status
	AttemptCount int
	MaxAttempts  int
	NextRetryAt  *time.Time // set only while retrying

	LastStatusCode int
	LastError      string

	CreatedAt   time.Time
	DeliveredAt *time.Time
}

type Store interface {
	Insert(ctx context.Context, d Delivery) error

	// ClaimDue atomically claims up to limit deliveries that are pending or
	// retrying with next_retry_at in the past. The claim transitions the row
	// to retrying with a lease on next_retry_at, which is the mutual
	// exclusion between a live dispatch attempt and the periodic sweep: a
	// claimed row is not due again until the lease lapses.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error)

	MarkSuccess(ctx context.Context, id string, statusCode int, at time.Time) error
	MarkRetrying(ctx context.Context, id string, attempts int, nextRetryAt time.Time, statusCode int, lastError string) error
	MarkFailed(ctx context.Context, id string, attempts int, statusCode int, lastError string) error

	ListByTenant(ctx context.Context, tenantID string, limit int) ([]Delivery, error)
}
