// ABOUTME: Bearer token inspection for the socket and notification stream
// ABOUTME: Reads claims without verifying; the server is the only verifier

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims are the parts of a session token the client cares about.
type Claims struct {
	Subject   string
	Board     string // optional board scope
	ExpiresAt time.Time
}

// ExpiresWithin reports whether the token expires before now+d. Tokens
// without an expiry never do.
func (c *Claims) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.ExpiresAt.IsZero() && !now.Add(d).Before(c.ExpiresAt)
}

type sessionClaims struct {
	Board string `json:"board,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes a token without checking its signature and rejects it if
// it has already expired at now. An empty token is reported as invalid.
func Inspect(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	var sc sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{Subject: sc.Subject, Board: sc.Board}
	if sc.ExpiresAt != nil {
		claims.ExpiresAt = sc.ExpiresAt.Time
		if !now.Before(claims.ExpiresAt) {
			return claims, ErrExpiredToken
		}
	}
	return claims, nil
}
