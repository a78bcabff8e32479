package credentials

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PrefixLen is how many plaintext characters of the key are stored for
// indexed lookup ("fgw_live_abcd" style display prefixes).
const PrefixLen = 12

// Plaintext is the one-time issuance output. It exists only in memory at
// creation/regeneration time and must never be persisted or logged.
type Plaintext struct {
	Key    string
	Secret string
}

// Generate produces a fresh key/secret pair for the environment. Keys look
// like fgw_live_<32 hex>, secrets like fgws_<48 hex>.
func Generate(env string) (Plaintext, error) {
	kb := make([]byte, 16)
	if _, err := rand.Read(kb); err != nil {
		return Plaintext{}, fmt.Errorf("generate key: %w", err)
	}
	sb := make([]byte, 24)
	if _, err := rand.Read(sb); err != nil {
		return Plaintext{}, fmt.Errorf("generate secret: %w", err)
	}
	return Plaintext{
		Key:    fmt.Sprintf("fgw_%s_%s", env, hex.EncodeToString(kb)),
		Secret: "fgws_" + hex.EncodeToString(sb),
	}, nil
}

// Hash returns the hex SHA-256 digest stored in place of a plaintext token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the indexed lookup prefix of a plaintext key.
func Prefix(key string) string {
	if len(key) < PrefixLen {
		return key
	}
	return key[:PrefixLen]
}

// HashMatches compares a candidate token against a stored hash in constant
// time. Both sides are fixed-length digests, so hmac.Equal never leaks length.
func HashMatches(token, storedHash string) bool {
	return hmac.Equal([]byte(Hash(token)), []byte(storedHash))
}
