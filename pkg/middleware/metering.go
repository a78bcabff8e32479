// pkg/middleware/metering.go
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"filegate/internal/usage"
	"filegate/pkg/metrics"
)

type ctxJobRefKey struct{}

// jobRef lets a handler tag the usage record with the job it created. The
// meter installs the pointer before the handler runs and reads it after.
type jobRef struct{ id string }

// SetJobID links the current request's usage record to a job.
func SetJobID(ctx context.Context, id string) {
	if ref, ok := ctx.Value(ctxJobRefKey{}).(*jobRef); ok {
		ref.id = id
	}
}

// Meter records a usage entry after the downstream handler returns. It only
// observes requests that passed auth and rate limiting; a request is billable
// unless the response was a server-side fault (>=500). Metering failures are
// logged by the usage meter and never surfaced to the caller.
func Meter(meter *usage.Meter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := TenantFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RequestsTotal.Inc()
			ref := &jobRef{}
			ctx := context.WithValue(r.Context(), ctxJobRefKey{}, ref)
			rw := &meterWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			elapsed := time.Since(start)
			metrics.RequestDurationSeconds.Observe(elapsed.Seconds())

			reqBytes := r.ContentLength
			if reqBytes < 0 {
				reqBytes = 0
			}
			rec := usage.Record{
				TenantID:      tc.TenantID,
				CredentialID:  tc.CredentialID,
				Endpoint:      r.URL.Path,
				Method:        r.Method,
				Status:        rw.status,
				CallerIP:      CallerIP(r),
				RequestBytes:  reqBytes,
				ResponseBytes: rw.written,
				LatencyMs:     elapsed.Milliseconds(),
				Billable:      rw.status < http.StatusInternalServerError,
				JobID:         ref.id,
				ErrorText:     rw.errorText(),
			}
			meter.Observe(r.Context(), tc.Plan, rec)
		})
	}
}

// meterWriter captures status, byte count and, for error responses, the head
// of the body for the usage record's error text.
type meterWriter struct {
	http.ResponseWriter
	status  int
	written int64
	errBuf  bytes.Buffer
}

func (m *meterWriter) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *meterWriter) Write(b []byte) (int, error) {
	if m.status >= http.StatusBadRequest && m.errBuf.Len() < 512 {
		room := 512 - m.errBuf.Len()
		if room > len(b) {
			room = len(b)
		}
		m.errBuf.Write(b[:room])
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += int64(n)
	return n, err
}

func (m *meterWriter) errorText() string {
	if m.status < http.StatusBadRequest {
		return ""
	}
	return m.errBuf.String()
}
