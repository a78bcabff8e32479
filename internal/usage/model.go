package usage

import (
	"context"
	"time"
)

// maxErrorText bounds stored error text so a misbehaving upstream cannot
// grow the usage log without bound.
const maxErrorText = 512

// Record is one billable or attempted request. Immutable once written.
type Record struct {
	ID            string
	TenantID      string
	CredentialID  string
	Endpoint      string
	Method        string
	Status        int
	CallerIP      string
	RequestBytes  int64
	ResponseBytes int64
	LatencyMs     int64
	Cost          float64
	Billable      bool
	JobID         string // originating job, when the request produced one
	ErrorText     string
	CreatedAt     time.Time
}

// Summary aggregates a tenant's usage over a period.
type Summary struct {
	Count         int64   `json:"count"`
	BillableCount int64   `json:"billable_count"`
	TotalCost     float64 `json:"total_cost"`
	AvgLatencyMs  int64   `json:"avg_latency_ms"`
}

type Store interface {
	Insert(ctx context.Context, rec Record) error
	SummaryByTenant(ctx context.Context, tenantID string, since time.Time) (Summary, error)
	// PruneOlderThan deletes records created before the cutoff, returning how
	// many were removed. Run from the ops service.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TruncateError bounds error text before it is persisted.
func TruncateError(s string) string {
	if len(s) <= maxErrorText {
		return s
	}
	return s[:maxErrorText]
}
