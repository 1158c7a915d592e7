package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string // stored normalised, see NormalizeEmail
	PasswordHash string // argon2 encoded
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail trims and lower-cases an address. Every lookup keyed by
// email goes through this so "Jane@X.com" and "jane@x.com" are one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
