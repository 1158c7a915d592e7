package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token TTL constants. Services override these from config.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenType distinguishes access tokens from refresh tokens. Both are
// signed with the same key, so the type claim is what stops one being
// replayed as the other.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims are the session claims carried by both token types. Email and Role
// are only present on access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Token type, "access" or "refresh"
	Type TokenType `json:"typ"`

	// Session ID, must match a live refresh session
	SID string `json:"sid"`

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserID is the subject of the token.
func (c Claims) UserID() string { return c.Subject }

// NewAccessClaims builds the claims for an access token issued at now.
func NewAccessClaims(userID, email, role, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(userID, issuer, ttl, now),
		Type:             TypeAccess,
		SID:              sid,
		Email:            email,
		Role:             role,
	}
}

// NewRefreshClaims builds the minimal claims for a refresh token issued at now.
func NewRefreshClaims(userID, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(userID, issuer, ttl, now),
		Type:             TypeRefresh,
		SID:              sid,
	}
}

func registered(subject, issuer string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiryAt checks exp against now. The expiry instant itself is
// already expired. There is no leeway: clock skew between issuer and
// verifier is not compensated.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrMalformed
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

// ValidateType checks the typ claim.
func (c *Claims) ValidateType(want TokenType) error {
	if c.Type != want {
		return ErrWrongTokenType
	}
	return nil
}
