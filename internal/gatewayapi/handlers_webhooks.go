package gatewayapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"filegate/pkg/apierr"
	"filegate/pkg/middleware"
)

type deliveryView struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	EventID     string     `json:"event_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	LastStatus  int        `json:"last_status_code,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

func (a *App) listDeliveries(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	list, err := a.deliveries.ListByTenant(r.Context(), tc.TenantID, limit)
	if err != nil {
		a.log.Errorw("delivery list failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	out := make([]deliveryView, 0, len(list))
	for _, d := range list {
		out = append(out, deliveryView{
			ID: d.ID, EventType: d.EventType, EventID: d.EventID, Status: string(d.Status),
			Attempts: d.AttemptCount, MaxAttempts: d.MaxAttempts, NextRetryAt: d.NextRetryAt,
			LastStatus: d.LastStatusCode, LastError: d.LastError,
			CreatedAt: d.CreatedAt, DeliveredAt: d.DeliveredAt,
		})
	}
	apierr.OK(w, map[string]any{"items": out}, http.StatusOK)
}

func (a *App) putWebhookConfig(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	var req struct {
		URL           string `json:"url"`
		Secret        string `json:"secret"`
		Enabled       bool   `json:"enabled"`
		PayloadFilter string `json:"payload_filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.ValidationError, "invalid JSON body")
		return
	}
	if req.Enabled {
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			apierr.Write(w, apierr.ValidationError, "url must be an absolute http(s) URL")
			return
		}
		if req.Secret == "" {
			apierr.Write(w, apierr.ValidationError, "secret is required when webhooks are enabled")
			return
		}
	}
	if err := a.tenants.UpdateWebhookConfig(r.Context(), tc.TenantID, req.URL, req.Secret, req.Enabled, req.PayloadFilter); err != nil {
		a.log.Errorw("webhook config update failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	apierr.OK(w, map[string]any{"enabled": req.Enabled}, http.StatusOK)
}

// testWebhook performs a one-off synchronous test delivery, independent of
// the retry state machine.
func (a *App) testWebhook(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	t, err := a.tenants.ResolveByID(r.Context(), tc.TenantID)
	if err != nil {
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	if !t.WebhooksConfigured() {
		apierr.Write(w, apierr.ValidationError, "webhooks are not configured")
		return
	}
	code, err := a.dispatcher.SendTest(r.Context(), t)
	if err != nil {
		apierr.Write(w, apierr.UpstreamDeliveryFailure, err.Error())
		return
	}
	apierr.OK(w, map[string]any{"status_code": code}, http.StatusOK)
}
