package gatewayapi

import (
	"encoding/json"
	"net/http"
	"time"

	"filegate/pkg/apierr"
	"filegate/pkg/credentials"
	"filegate/pkg/middleware"
)

type credentialView struct {
	ID         string     `json:"id"`
	Env        string     `json:"env"`
	Label      string     `json:"label,omitempty"`
	KeyPrefix  string     `json:"key_prefix"`
	Active     bool       `json:"active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *App) listCredentials(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	list, err := a.credentials.ListByTenant(r.Context(), tc.TenantID)
	if err != nil {
		a.log.Errorw("credential list failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	out := make([]credentialView, 0, len(list))
	for _, c := range list {
		out = append(out, credentialView{
			ID: c.ID, Env: c.Env, Label: c.Label, KeyPrefix: c.KeyPrefix, Active: c.Active,
			ExpiresAt: c.ExpiresAt, RevokedAt: c.RevokedAt, LastUsedAt: c.LastUsedAt, CreatedAt: c.CreatedAt,
		})
	}
	apierr.OK(w, map[string]any{"items": out}, http.StatusOK)
}

// rotateCredential is self-service regeneration: a new pair is issued for the
// same environment and the credential used to authenticate this request is
// revoked. The plaintext pair appears in this response exactly once.
func (a *App) rotateCredential(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	var req struct {
		Label string `json:"label"`
	}
	// body optional
	_ = json.NewDecoder(r.Body).Decode(&req)

	cred, pt, err := credentials.Issue(r.Context(), a.credentials, credentials.IssueSpec{
		TenantID: tc.TenantID,
		Env:      tc.Env,
		Label:    req.Label,
	})
	if err != nil {
		a.log.Errorw("credential issue failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	if err := a.credentials.Revoke(r.Context(), tc.CredentialID); err != nil {
		a.log.Errorw("old credential revoke failed", "tenant", tc.TenantID, "credential", tc.CredentialID, "err", err)
	}
	apierr.OK(w, map[string]any{
		"id":         cred.ID,
		"env":        cred.Env,
		"key_prefix": cred.KeyPrefix,
		"api_key":    pt.Key,
		"api_secret": pt.Secret,
		"notice":     "store these now; they are not retrievable again",
	}, http.StatusCreated)
}
