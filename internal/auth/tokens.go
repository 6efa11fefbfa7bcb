package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// Token is a one-shot credential for email verification or password reset.
// Raw goes into the emailed link; only Hash is persisted, so a store snapshot
// cannot be replayed into a working link.
type Token struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

func IssueToken(now time.Time, ttl time.Duration) (Token, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, fmt.Errorf("read token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return Token{
		Raw:       raw,
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(ttl),
	}, nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
