// pkg/apierr/apierr.go
package apierr

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Reason is the closed set of machine-readable rejection codes the gateway
// returns. Handlers never invent ad hoc strings; every caller-visible failure
// maps to one of these.
type Reason string

const (
	MissingCredential       Reason = "MISSING_CREDENTIAL"
	InvalidCredential       Reason = "INVALID_CREDENTIAL"
	CredentialExpired       Reason = "CREDENTIAL_EXPIRED"
	TenantInactive          Reason = "TENANT_INACTIVE"
	IPNotAllowed            Reason = "IP_NOT_ALLOWED"
	RateLimitExceeded       Reason = "RATE_LIMIT_EXCEEDED"
	QuotaExceeded           Reason = "QUOTA_EXCEEDED"
	ValidationError         Reason = "VALIDATION_ERROR"
	UpstreamDeliveryFailure Reason = "UPSTREAM_DELIVERY_FAILURE"
	InternalError           Reason = "INTERNAL_ERROR"
)

// Status maps a reason to its HTTP status code.
func (r Reason) Status() int {
	switch r {
	case MissingCredential, InvalidCredential, CredentialExpired:
		return http.StatusUnauthorized
	case TenantInactive, IPNotAllowed:
		return http.StatusForbidden
	case RateLimitExceeded, QuotaExceeded:
		return http.StatusTooManyRequests
	case ValidationError:
		return http.StatusBadRequest
	case UpstreamDeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the default human-readable message for a reason.
func (r Reason) Message() string {
	switch r {
	case MissingCredential:
		return "no API key was provided"
	case InvalidCredential:
		return "the API key is not valid"
	case CredentialExpired:
		return "the API key has expired or was revoked"
	case TenantInactive:
		return "this account is not active"
	case IPNotAllowed:
		return "requests from this IP address are not allowed"
	case RateLimitExceeded:
		return "per-minute rate limit exceeded"
	case QuotaExceeded:
		return "monthly request quota exceeded"
	case ValidationError:
		return "the request is malformed"
	case UpstreamDeliveryFailure:
		return "delivery to the configured endpoint failed"
	default:
		return "an internal error occurred"
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Errors  *errs  `json:"errors,omitempty"`
}

type errs struct {
	Code    Reason `json:"code"`
	Details string `json:"details"`
}

// Write emits the rejection envelope with the reason's status code.
func Write(w http.ResponseWriter, r Reason, details string) {
	WriteStatus(w, r, details, r.Status())
}

// WriteStatus is Write with an explicit status override.
func WriteStatus(w http.ResponseWriter, r Reason, details string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Data:    nil,
		Message: r.Message(),
		Errors:  &errs{Code: r, Details: details},
	})
}

// OK emits the success envelope.
func OK(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: "ok"})
}

// RateHeaders carries the values for the X-RateLimit response headers. Monthly
// fields are emitted with the -Month suffix; Reset values are epoch seconds.
type RateHeaders struct {
	Limit          int64
	Remaining      int64
	Reset          time.Time
	MonthLimit     int64 // 0 when the plan is unlimited; headers omitted
	MonthRemaining int64
	MonthReset     time.Time
}

// Set writes the rate headers. Called on success and on 429 alike.
func (h RateHeaders) Set(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(h.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max64(h.Remaining, 0), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(h.Reset.Unix(), 10))
	if h.MonthLimit > 0 {
		w.Header().Set("X-RateLimit-Limit-Month", strconv.FormatInt(h.MonthLimit, 10))
		w.Header().Set("X-RateLimit-Remaining-Month", strconv.FormatInt(max64(h.MonthRemaining, 0), 10))
		w.Header().Set("X-RateLimit-Reset-Month", strconv.FormatInt(h.MonthReset.Unix(), 10))
	}
}

// SetRetryAfter adds Retry-After in whole seconds until reset.
func (h RateHeaders) SetRetryAfter(w http.ResponseWriter, now time.Time, reset time.Time) {
	secs := int64(reset.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
