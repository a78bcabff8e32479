package gatewayapi

import (
	"encoding/json"
	"net/http"
	"time"

	"filegate/internal/jobs"
	"filegate/pkg/apierr"
	"filegate/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

type jobView struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	InputName   string     `json:"input_name,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func viewJob(j jobs.Job) jobView {
	return jobView{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      string(j.Status),
		InputName:   j.InputName,
		DownloadURL: j.ResultURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

func (a *App) createJob(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	var req struct {
		Kind      string `json:"kind"`
		InputName string `json:"input_name"`
		InputSize int64  `json:"input_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Kind == "" {
		apierr.Write(w, apierr.ValidationError, "kind is required")
		return
	}
	j, err := a.jobs.Create(r.Context(), tc.TenantID, req.Kind, req.InputName, req.InputSize)
	if err != nil {
		a.log.Errorw("job create failed", "tenant", tc.TenantID, "err", err)
		apierr.Write(w, apierr.InternalError, "")
		return
	}
	middleware.SetJobID(r.Context(), j.ID)
	apierr.OK(w, viewJob(j), http.StatusAccepted)
}

func (a *App) getJob(w http.ResponseWriter, r *http.Request) {
	tc, _ := middleware.TenantFrom(r.Context())
	j, err := a.jobs.Get(r.Context(), tc.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		apierr.WriteStatus(w, apierr.ValidationError, "unknown job", http.StatusNotFound)
		return
	}
	apierr.OK(w, viewJob(j), http.StatusOK)
}
