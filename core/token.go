package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the minimum signing secret size in bytes. HMAC-SHA256 keys
// shorter than the hash output weaken the signature.
const minSecretLen = 32

// DefaultTokenLifetime is used when no lifetime is configured.
const DefaultTokenLifetime = 24 * time.Hour

// TokenCodec issues and verifies signed bearer tokens. It is the sole
// authority on token validity; nothing is persisted server-side.
//
// The signing secret is injected at construction and immutable for the
// process lifetime. Safe for concurrent use.
type TokenCodec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewTokenCodec validates the secret strength and lifetime and returns a
// ready codec. A non-positive lifetime falls back to DefaultTokenLifetime.
func NewTokenCodec(secret string, lifetime time.Duration) (*TokenCodec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)
	}
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenCodec{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}, nil
}

// Issue creates a signed token for (subject, role). Expiry is issued-at plus
// the configured lifetime.
func (tc *TokenCodec) Issue(subject string, role Role) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", string(role))
	}

	now := tc.now()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
}

// Subject parses and signature-verifies the token and returns its subject.
// Corrupt, truncated, or foreign-signed tokens yield ErrInvalidToken.
func (tc *TokenCodec) Subject(token string) (string, error) {
	claims, err := tc.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Role parses and signature-verifies the token and returns its role claim.
func (tc *TokenCodec) Role(token string) (Role, error) {
	claims, err := tc.parse(token)
	if err != nil {
		return "", err
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return "", ErrInvalidToken
	}
	return role, nil
}

// IsValid reports whether the token parses, its signature verifies against
// the codec's secret, and the current time is before its expiry (a token is
// already invalid at the exact expiry instant). It never returns an error;
// any failure yields false.
func (tc *TokenCodec) IsValid(token string) bool {
	_, err := tc.parse(token)
	return err == nil
}

func (tc *TokenCodec) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, tc.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (tc *TokenCodec) keyFunc(*jwt.Token) (interface{}, error) {
	return tc.secret, nil
}
