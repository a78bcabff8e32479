package jobs

import (
	"context"
	"errors"
	"time"
)

// Status of a processing job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var ErrNotFound = errors.New("job not found")

// Job is an asynchronous file-processing task. The conversion itself is an
// external collaborator behind the Processor interface; this package only
// tracks lifecycle and emits the terminal-state events the webhook engine
// delivers.
type Job struct {
	ID        string // uuid
	TenantID  string
	Kind      string // e.g. convert.pdf, convert.image
	Status    Status
	InputName string
	InputSize int64
	// ResultURL is a short-lived download reference set on completion.
	ResultURL   string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the job reached a final state.
func (j Job) Terminal() bool { return j.Status == StatusCompleted || j.Status == StatusFailed }

type Store interface {
	Insert(ctx context.Context, j Job) error
	Get(ctx context.Context, tenantID, id string) (Job, error)
	Update(ctx context.Context, j Job) error
}

// Processor executes a job's actual work. The real file converters live
// outside the gateway; the stub processor completes everything immediately.
type Processor interface {
	Process(ctx context.Context, j Job) (resultURL string, err error)
}
