package opsapi

import (
	"context"

	"filegate/pkg/tenants"

	"go.uber.org/zap"
)

// Notifier delivers quota warnings to tenants. Email rendering and sending
// live outside the gateway; the default implementation just logs.
type Notifier interface {
	QuotaWarning(ctx context.Context, t tenants.Tenant, level int, usage, limit int64) error
}

type logNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) QuotaWarning(ctx context.Context, t tenants.Tenant, level int, usage, limit int64) error {
	n.log.Infow("quota warning", "tenant", t.Slug, "email", t.ContactEmail, "level", level, "usage", usage, "limit", limit)
	return nil
}
