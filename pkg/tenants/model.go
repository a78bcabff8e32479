package tenants

import (
	"time"

	"filegate/pkg/plans"
)

// Tenant represents a merchant account with its own credentials, quota and
// webhook configuration.
type Tenant struct {
	ID   string // uuid
	Slug string // short name (acme)
	Name string
	Plan string // plan catalog key (free, starter, pro, enterprise)

	Active bool

	// Monthly usage is monotone within a billing period and reset to zero
	// exactly once per period by the ops quota-reset job.
	MonthlyUsage     int64
	MonthlyOverride  *int64 // per-tenant ceiling replacing the plan's, nil = plan default
	LifetimeRequests int64

	WebhookURL           string
	WebhookSecret        string
	WebhookEnabled       bool
	WebhookPayloadFilter string // optional JMESPath projection applied to outbound payloads

	ContactEmail string

	// Highest quota-warning threshold already notified this period (0, 80 or 100).
	QuotaWarnLevel int

	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MonthlyLimit resolves the tenant's effective ceiling: the per-tenant
// override when set, else the plan's. nil means unlimited.
func (t Tenant) MonthlyLimit(cat *plans.Catalog) *int64 {
	if t.MonthlyOverride != nil {
		return t.MonthlyOverride
	}
	return cat.Lookup(t.Plan).MonthlyLimit
}

// OverQuota reports whether the tenant has exhausted its monthly ceiling.
func (t Tenant) OverQuota(cat *plans.Catalog) bool {
	lim := t.MonthlyLimit(cat)
	return lim != nil && t.MonthlyUsage >= *lim
}

// WebhooksConfigured reports whether deliveries should be created at all.
func (t Tenant) WebhooksConfigured() bool {
	return t.WebhookEnabled && t.WebhookURL != ""
}
