// internal/webhooks/dispatcher.go
package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"filegate/pkg/metrics"
	"filegate/pkg/tenants"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userAgent    = "filegate-webhooks/1.0"
	claimLease   = 90 * time.Second
	claimBatch   = 50
	maxBodyDrain = 4096
	maxBackoff   = time.Hour
)

// Dispatcher creates signed deliveries for domain events and sends them
// asynchronously with bounded retries. Dispatch never runs inline with the
// request that triggered the event: Enqueue only persists the delivery and
// nudges the sweep loop, which claims due rows and hands them to workers.
type Dispatcher struct {
	store   Store
	tenants tenants.Provider
	log     *zap.SugaredLogger
	client  *http.Client

	maxAttempts   int
	backoffBase   time.Duration
	sweepInterval time.Duration
	workers       int

	kick chan struct{}
	work chan Delivery

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dispatchSuccessTotal atomic.Int64
	dispatchRetryTotal   atomic.Int64
	dispatchFailedTotal  atomic.Int64
}

// Options tunes the dispatcher; zero values fall back to sane defaults.
type Options struct {
	Timeout       time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	SweepInterval time.Duration
	Workers       int
}

func NewDispatcher(store Store, prov tenants.Provider, log *zap.SugaredLogger, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Dispatcher{
		store:         store,
		tenants:       prov,
		log:           log,
		client:        &http.Client{Timeout: opts.Timeout},
		maxAttempts:   opts.MaxAttempts,
		backoffBase:   opts.BackoffBase,
		sweepInterval: opts.SweepInterval,
		workers:       opts.Workers,
		kick:          make(chan struct{}, 1),
		work:          make(chan Delivery),
	}
}

// Enqueue persists a signed delivery for the event, or skips entirely when
// the tenant has webhooks disabled or no destination URL.
func (d *Dispatcher) Enqueue(ctx context.Context, t tenants.Tenant, ev Event) (*Delivery, error) {
	if !t.WebhooksConfigured() {
		return nil, nil
	}
	payload, err := BuildPayload(ev, t.WebhookPayloadFilter)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	del := Delivery{
		ID:          uuid.NewString(),
		TenantID:    t.ID,
		EventType:   ev.Type,
		EventID:     ev.ID,
		URL:         t.WebhookURL,
		Payload:     payload,
		Signature:   Sign(payload, t.WebhookSecret),
		Status:      StatusPending,
		MaxAttempts: d.maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.store.Insert(ctx, del); err != nil {
		return nil, fmt.Errorf("persist delivery: %w", err)
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return &del, nil
}

// Start launches the sweep loop and worker pool.
func (d *Dispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.wg.Add(1)
	go d.sweepLoop(ctx)
}

func (d *Dispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

// Sweep claims due deliveries once and feeds the workers. Exposed so the ops
// service can trigger an immediate pass.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	due, err := d.store.ClaimDue(ctx, time.Now().UTC(), claimLease, claimBatch)
	if err != nil {
		return 0, err
	}
	for _, del := range due {
		select {
		case d.work <- del:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return len(due), nil
}

func (d *Dispatcher) sweepLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		if _, err := d.Sweep(ctx); err != nil && ctx.Err() == nil {
			d.log.Errorw("webhook sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case del := <-d.work:
			d.attempt(ctx, del)
		}
	}
}

// attempt sends one delivery and resolves its state transition.
func (d *Dispatcher) attempt(ctx context.Context, del Delivery) {
	code, err := d.send(ctx, del.URL, del.Payload, del.Signature, del.EventType)
	now := time.Now().UTC()
	if err == nil {
		d.dispatchSuccessTotal.Add(1)
		metrics.WebhookDispatchTotal.WithLabelValues("success").Inc()
		if markErr := d.store.MarkSuccess(ctx, del.ID, code, now); markErr != nil {
			d.log.Errorw("mark success failed", "delivery", del.ID, "err", markErr)
		}
		return
	}

	attempts := del.AttemptCount + 1
	lastErr := truncate(err.Error(), 512)
	if attempts >= del.MaxAttempts {
		d.dispatchFailedTotal.Add(1)
		metrics.WebhookDispatchTotal.WithLabelValues("failed").Inc()
		d.log.Warnw("webhook delivery exhausted", "delivery", del.ID, "tenant", del.TenantID, "attempts", attempts, "err", err)
		if markErr := d.store.MarkFailed(ctx, del.ID, attempts, code, lastErr); markErr != nil {
			d.log.Errorw("mark failed failed", "delivery", del.ID, "err", markErr)
		}
		return
	}

	next := now.Add(d.backoff(attempts))
	d.dispatchRetryTotal.Add(1)
	metrics.WebhookDispatchTotal.WithLabelValues("retry").Inc()
	if markErr := d.store.MarkRetrying(ctx, del.ID, attempts, next, code, lastErr); markErr != nil {
		d.log.Errorw("mark retrying failed", "delivery", del.ID, "err", markErr)
	}
}

// backoff doubles per attempt: base x 2^attempt, capped.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	b := d.backoffBase
	for i := 0; i < attempt; i++ {
		b *= 2
		if b >= maxBackoff {
			return maxBackoff
		}
	}
	return b
}

// send POSTs the signed payload. Any non-2xx response is an error so the
// retry policy applies uniformly to HTTP and transport failures.
func (d *Dispatcher) send(ctx context.Context, url string, payload []byte, signature, eventType string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", eventType)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// SendTest performs a one-off synchronous delivery with a synthetic payload.
// Nothing is persisted and production retry counters are untouched.
func (d *Dispatcher) SendTest(ctx context.Context, t tenants.Tenant) (int, error) {
	if !t.WebhooksConfigured() {
		return 0, fmt.Errorf("webhooks not configured for tenant %s", t.Slug)
	}
	ev := Event{
		Type:       "webhook.test",
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Fields:     map[string]any{"message": "test delivery from filegate"},
	}
	payload, err := BuildPayload(ev, "")
	if err != nil {
		return 0, err
	}
	return d.send(ctx, t.WebhookURL, payload, Sign(payload, t.WebhookSecret), ev.Type)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// DispatchMetrics is a point-in-time snapshot of dispatcher counters.
type DispatchMetrics struct {
	SuccessTotal int64
	RetryTotal   int64
	FailedTotal  int64
}

func (d *Dispatcher) Metrics() DispatchMetrics {
	return DispatchMetrics{
		SuccessTotal: d.dispatchSuccessTotal.Load(),
		RetryTotal:   d.dispatchRetryTotal.Load(),
		FailedTotal:  d.dispatchFailedTotal.Load(),
	}
}
