package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

var ErrNoExpiry = errors.New("token carries no expiry")

// TokenExpiry reads the exp claim of a bearer token without verifying its
// signature. The console never holds the backend's signing key; the value is
// only used to schedule a local logout.
func TokenExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrNoExpiry
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// ParseExpiry resolves the session expiry from the login response, falling
// back to the token's own exp claim.
func ParseExpiry(expiresAt, token string) (*time.Time, error) {
	if v := strings.TrimSpace(expiresAt); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parse expiresAt: %w", err)
		}
		t = t.UTC()
		return &t, nil
	}
	t, err := TokenExpiry(token)
	if err != nil {
		// opaque tokens carry no expiry
		return nil, nil
	}
	t = t.UTC()
	return &t, nil
}

// Fingerprint is a short, non-reversible identifier safe to log in place of
// a credential.
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}
