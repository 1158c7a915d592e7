package domain

import "time"

// DefaultResetMaxAttempts is the attempt cap when config does not override it.
const DefaultResetMaxAttempts = 5

// PasswordResetChallenge is the single active reset challenge for an email.
// A new request replaces it outright. Once used, exhausted or expired it is
// terminal and never revived.
type PasswordResetChallenge struct {
	ID          string
	Email       string
	UserID      string // empty for a decoy issued to an unknown address
	OTPHash     string // keyed digest, never the raw code
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// Expired reports whether now is past ExpiresAt. The challenge still
// accepts attempts at the ExpiresAt instant itself.
func (c PasswordResetChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Exhausted reports whether the attempt cap has been reached.
func (c PasswordResetChallenge) Exhausted() bool {
	return c.Attempts >= c.MaxAttempts
}

// Used reports whether the challenge has been consumed.
func (c PasswordResetChallenge) Used() bool {
	return c.UsedAt != nil
}

// Decoy reports whether the challenge was issued for an unknown address.
func (c PasswordResetChallenge) Decoy() bool {
	return c.UserID == ""
}
