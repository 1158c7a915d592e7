package service

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")

	// ErrInvalidToken covers malformed, badly signed, expired and wrong-type
	// tokens. The jwtx cause is wrapped alongside it for logging.
	ErrInvalidToken = errors.New("invalid_token")

	// ErrSessionInvalid means the token verified but its session is gone,
	// expired, or could not be confirmed.
	ErrSessionInvalid = errors.New("session_invalid")

	// ErrAccountGone means the token and session are fine but the user was
	// deleted after issuance.
	ErrAccountGone = errors.New("account_gone")

	// ErrForbidden is for callers enforcing roles on an authenticated identity.
	ErrForbidden = errors.New("forbidden")

	ErrResetNotFound         = errors.New("reset_not_found")
	ErrResetExpired          = errors.New("reset_expired")
	ErrResetAttemptsExceeded = errors.New("reset_attempts_exceeded")
	ErrResetInvalidCode      = errors.New("reset_invalid_code")
)

// ValidationError reports field-level input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// clock returns now() or time.Now when unset.
func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
