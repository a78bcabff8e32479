package credentials

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound covers unknown keys and revoked/inactive credentials alike;
	// callers must not learn which.
	ErrNotFound = errors.New("credential not found")
	// ErrExpired marks a correct key whose credential is past expiry or revoked.
	ErrExpired = errors.New("credential expired")
	// ErrIPNotAllowed marks a correct key used from outside its allow-list.
	ErrIPNotAllowed = errors.New("ip not allowed")
)

type Store interface {
	// LookupByPrefix returns every credential whose stored prefix matches.
	// Prefix collisions are expected; the caller verifies each candidate.
	LookupByPrefix(ctx context.Context, prefix string) ([]Credential, error)
	Insert(ctx context.Context, c Credential) error
	Revoke(ctx context.Context, id string) error
	// TouchLastUsed is best effort; failures are logged, never surfaced.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	ListByTenant(ctx context.Context, tenantID string) ([]Credential, error)
	RevokeAllForTenant(ctx context.Context, tenantID string) error
}

// IssueSpec carries the caller-controlled fields of a new credential.
type IssueSpec struct {
	TenantID          string
	Env               string
	Label             string
	ExpiresAt         *time.Time
	AllowedIPs        []string
	PerMinuteOverride int
}

// Issue generates a pair, persists only the hashes, and returns the plaintext
// exactly once. The plaintext is never retrievable again.
func Issue(ctx context.Context, store Store, spec IssueSpec) (Credential, Plaintext, error) {
	env := spec.Env
	if env == "" {
		env = EnvSandbox
	}
	pt, err := Generate(env)
	if err != nil {
		return Credential{}, Plaintext{}, err
	}
	c := Credential{
		ID:                uuid.NewString(),
		TenantID:          spec.TenantID,
		Env:               env,
		Label:             spec.Label,
		KeyHash:           Hash(pt.Key),
		SecretHash:        Hash(pt.Secret),
		KeyPrefix:         Prefix(pt.Key),
		Active:            true,
		ExpiresAt:         spec.ExpiresAt,
		AllowedIPs:        spec.AllowedIPs,
		PerMinuteOverride: spec.PerMinuteOverride,
		CreatedAt:         time.Now().UTC(),
	}
	if err := store.Insert(ctx, c); err != nil {
		return Credential{}, Plaintext{}, err
	}
	return c, pt, nil
}

// VerifyKey resolves a plaintext key to its credential: prefix-indexed lookup,
// then constant-time hash verification against every candidate, then
// activation/expiry and IP allow-list checks. callerIP may be empty when the
// peer address could not be resolved (allow-listed credentials then fail).
func VerifyKey(ctx context.Context, store Store, key, callerIP string, now time.Time) (Credential, error) {
	cands, err := store.LookupByPrefix(ctx, Prefix(key))
	if err != nil {
		return Credential{}, err
	}
	for _, c := range cands {
		if !HashMatches(key, c.KeyHash) {
			continue
		}
		if c.Expired(now) {
			return Credential{}, ErrExpired
		}
		if !c.Active {
			return Credential{}, ErrNotFound
		}
		if !IPAllowed(c.AllowedIPs, callerIP) {
			return Credential{}, ErrIPNotAllowed
		}
		return c, nil
	}
	return Credential{}, ErrNotFound
}

// IPAllowed checks addr against a list of addresses or CIDR ranges. An empty
// list allows all addresses.
func IPAllowed(allowed []string, addr string) bool {
	if len(allowed) == 0 {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return false
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(ip) {
				return true
			}
			continue
		}
		if single := net.ParseIP(entry); single != nil && single.Equal(ip) {
			return true
		}
	}
	return false
}
