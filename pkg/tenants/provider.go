package tenants

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no tenant matches the lookup.
var ErrNotFound = errors.New("tenant not found")

type Provider interface {
	ResolveByID(ctx context.Context, id string) (Tenant, error)
	ResolveBySlug(ctx context.Context, slug string) (Tenant, error)
	Create(ctx context.Context, t Tenant) error
	SetActive(ctx context.Context, id string, active bool) error

	// IncrementUsage bumps the monthly and lifetime counters by one and
	// refreshes last activity. The increment must be atomic at the storage
	// layer; concurrent billable requests may not lose updates.
	IncrementUsage(ctx context.Context, id string) error

	// ResetMonthlyUsage zeroes every tenant's monthly counter and warning
	// level, returning how many rows were touched. Runs once per billing
	// period from the ops service.
	ResetMonthlyUsage(ctx context.Context) (int64, error)

	SetQuotaWarnLevel(ctx context.Context, id string, level int) error
	UpdateWebhookConfig(ctx context.Context, id, url, secret string, enabled bool, payloadFilter string) error

	// ListActive returns all active tenants (quota-warning scan).
	ListActive(ctx context.Context) ([]Tenant, error)
}
