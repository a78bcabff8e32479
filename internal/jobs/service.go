package jobs

import (
	"context"
	"time"

	"filegate/internal/webhooks"
	"filegate/pkg/tenants"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service owns the job lifecycle. Terminal transitions emit job.completed /
// job.failed events into the webhook engine; webhook persistence failures are
// logged and never fail the job transition itself.
type Service struct {
	store      Store
	tenants    tenants.Provider
	dispatcher *webhooks.Dispatcher
	processor  Processor
	log        *zap.SugaredLogger
}

func NewService(store Store, prov tenants.Provider, dispatcher *webhooks.Dispatcher, processor Processor, log *zap.SugaredLogger) *Service {
	return &Service{store: store, tenants: prov, dispatcher: dispatcher, processor: processor, log: log}
}

// Create registers a queued job and hands it to the processor in the
// background. The request path never waits for processing.
func (s *Service) Create(ctx context.Context, tenantID, kind, inputName string, inputSize int64) (Job, error) {
	j := Job{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      kind,
		Status:    StatusQueued,
		InputName: inputName,
		InputSize: inputSize,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, j); err != nil {
		return Job{}, err
	}
	go s.run(context.WithoutCancel(ctx), j)
	return j, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Job, error) {
	return s.store.Get(ctx, tenantID, id)
}

func (s *Service) run(ctx context.Context, j Job) {
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.StartedAt = &now
	if err := s.store.Update(ctx, j); err != nil {
		s.log.Errorw("job update failed", "job", j.ID, "err", err)
	}

	resultURL, err := s.processor.Process(ctx, j)
	if err != nil {
		s.fail(ctx, j, err.Error())
		return
	}
	s.complete(ctx, j, resultURL)
}

func (s *Service) complete(ctx context.Context, j Job, resultURL string) {
	done := time.Now().UTC()
	j.Status = StatusCompleted
	j.ResultURL = resultURL
	j.CompletedAt = &done
	if err := s.store.Update(ctx, j); err != nil {
		s.log.Errorw("job update failed", "job", j.ID, "err", err)
		return
	}
	s.notify(ctx, j, "job.completed")
}

func (s *Service) fail(ctx context.Context, j Job, errText string) {
	done := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = errText
	j.CompletedAt = &done
	if err := s.store.Update(ctx, j); err != nil {
		s.log.Errorw("job update failed", "job", j.ID, "err", err)
		return
	}
	s.notify(ctx, j, "job.failed")
}

// notify enqueues the terminal-state webhook. The event id is the job id plus
// the event type, stable across delivery retries so receivers can dedupe.
func (s *Service) notify(ctx context.Context, j Job, eventType string) {
	t, err := s.tenants.ResolveByID(ctx, j.TenantID)
	if err != nil {
		s.log.Errorw("tenant resolve for webhook failed", "job", j.ID, "err", err)
		return
	}
	fields := map[string]any{
		"job_id":     j.ID,
		"kind":       j.Kind,
		"status":     string(j.Status),
		"created_at": j.CreatedAt.Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		fields["completed_at"] = j.CompletedAt.Format(time.RFC3339)
	}
	if j.Status == StatusCompleted {
		fields["download_url"] = j.ResultURL
	} else {
		fields["error"] = j.Error
	}
	ev := webhooks.Event{
		Type:       eventType,
		ID:         j.ID + ":" + eventType,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}
	if _, err := s.dispatcher.Enqueue(ctx, t, ev); err != nil {
		s.log.Errorw("webhook enqueue failed", "job", j.ID, "tenant", t.ID, "err", err)
	}
}

// StubProcessor satisfies Processor for environments without the conversion
// fleet attached; it reports every job complete with a placeholder reference.
type StubProcessor struct{}

func (StubProcessor) Process(ctx context.Context, j Job) (string, error) {
	return "https://files.example.com/results/" + j.ID, nil
}
