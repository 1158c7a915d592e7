package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeySize is the minimum HMAC key length accepted by NewCodec.
const MinKeySize = 32

var (
	ErrWeakKey = errors.New("jwtx: signing key too short")

	ErrMalformed        = errors.New("jwtx: malformed token")
	ErrInvalidSignature = errors.New("jwtx: invalid signature")
	ErrExpired          = errors.New("jwtx: token expired")

	ErrIssuer         = errors.New("jwtx: issuer mismatch")
	ErrWrongTokenType = errors.New("jwtx: wrong token type")
)

// Codec issues and verifies HS256 session tokens with a single symmetric
// key. It holds no mutable state and is safe for concurrent use.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec signing with key. The key is copied.
func NewCodec(key []byte, issuer string, opts ...CodecOption) (*Codec, error) {
	if len(key) < MinKeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakKey, MinKeySize, len(key))
	}

	c := &Codec{
		key:    append([]byte(nil), key...),
		issuer: issuer,
		now:    time.Now,
		// Claims are validated by hand so the order of checks stays fixed:
		// structure, signature, expiry, then everything else.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess signs an access token for the given session.
func (c *Codec) IssueAccess(userID, email, role, sessionID string, ttl time.Duration) (string, error) {
	return c.sign(NewAccessClaims(userID, email, role, sessionID, c.issuer, ttl, c.now().UTC()))
}

// IssueRefresh signs a refresh token for the given session.
func (c *Codec) IssueRefresh(userID, sessionID string, ttl time.Duration) (string, error) {
	return c.sign(NewRefreshClaims(userID, sessionID, c.issuer, ttl, c.now().UTC()))
}

func (c *Codec) sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Verify checks a token of either type. Failures are one of ErrMalformed,
// ErrInvalidSignature, ErrExpired or ErrIssuer, in that order of precedence.
func (c *Codec) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, ErrMalformed
		}
	}

	if err := claims.ValidateExpiryAt(c.now().UTC()); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateIssuer(c.issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" || claims.SID == "" {
		return Claims{}, ErrMalformed
	}

	return claims, nil
}

// VerifyAccess is Verify plus a check that raw is an access token.
func (c *Codec) VerifyAccess(raw string) (Claims, error) {
	return c.verifyType(raw, TypeAccess)
}

// VerifyRefresh is Verify plus a check that raw is a refresh token.
func (c *Codec) VerifyRefresh(raw string) (Claims, error) {
	return c.verifyType(raw, TypeRefresh)
}

func (c *Codec) verifyType(raw string, want TokenType) (Claims, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateType(want); err != nil {
		return Claims{}, err
	}
	return claims, nil
}
