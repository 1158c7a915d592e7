package domain

import "time"

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string // always "Bearer"
	ExpiresIn    time.Duration
	SessionID    string
}

// RefreshSession is the server-side record that keeps a login alive. An
// access token whose session is absent is revoked regardless of its own
// expiry.
type RefreshSession struct {
	ID        string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Identity is the authenticated principal attached to a request. Role comes
// from the verified token claims, not from a fresh user read.
type Identity struct {
	UserID    string
	Email     string
	Role      Role
	SessionID string
}
