package usage

import (
	"context"
	"time"

	"filegate/pkg/metrics"
	"filegate/pkg/plans"
	"filegate/pkg/tenants"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Meter persists usage records and advances tenant counters after the
// downstream handler has produced its response. Its failures are operational
// events only; they never alter what the caller sees.
type Meter struct {
	store   Store
	tenants tenants.Provider
	catalog *plans.Catalog
	log     *zap.SugaredLogger
}

func NewMeter(store Store, prov tenants.Provider, catalog *plans.Catalog, log *zap.SugaredLogger) *Meter {
	return &Meter{store: store, tenants: prov, catalog: catalog, log: log}
}

// Observe finalizes and persists one record. Billability is decided by the
// caller (the metering middleware only runs once auth and rate limiting have
// passed); cost and counters are applied here.
func (m *Meter) Observe(ctx context.Context, plan string, rec Record) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	rec.ErrorText = TruncateError(rec.ErrorText)
	if rec.Billable {
		rec.Cost = m.catalog.Cost(plan)
	}

	if err := m.store.Insert(ctx, rec); err != nil {
		m.log.Errorw("usage record insert failed", "tenant", rec.TenantID, "err", err)
	}
	if !rec.Billable {
		return
	}
	metrics.BillableRequestsTotal.Inc()
	if err := m.tenants.IncrementUsage(ctx, rec.TenantID); err != nil {
		m.log.Errorw("usage counter increment failed", "tenant", rec.TenantID, "err", err)
	}
}
