package credentials

import (
	"time"
)

// Environments a credential can be issued for.
const (
	EnvSandbox = "sandbox"
	EnvLive    = "live"
)

// Credential is an API key/secret pair owned by exactly one tenant. Only
// irreversible SHA-256 hashes of the key and secret are stored; KeyPrefix is
// the short plaintext head of the key kept for indexed lookup and display.
type Credential struct {
	ID       string // uuid
	TenantID string
	Env      string // sandbox | live
	Label    string

	KeyHash    string // hex sha256 of the full key
	SecretHash string // hex sha256 of the secret
	KeyPrefix  string // first PrefixLen chars of the plaintext key

	Active    bool
	ExpiresAt *time.Time
	RevokedAt *time.Time

	// AllowedIPs holds individual addresses or CIDR ranges. Empty = allow all.
	AllowedIPs []string

	// PerMinuteOverride replaces the plan's per-minute limit when > 0.
	PerMinuteOverride int

	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the credential passes activation, revocation and
// expiry checks at the given instant.
func (c Credential) Usable(now time.Time) bool {
	if !c.Active || c.RevokedAt != nil {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// Expired reports whether the credential is past its expiry or revoked,
// distinguishing CredentialExpired from InvalidCredential rejections.
func (c Credential) Expired(now time.Time) bool {
	if c.RevokedAt != nil {
		return true
	}
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
