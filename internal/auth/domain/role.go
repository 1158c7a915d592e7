package domain

import (
	"errors"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleSeeker Role = "JOB_SEEKER"
	RolePoster Role = "JOB_POSTER"
)

var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole accepts the canonical names and their short forms, case
// insensitively. Anything else is an error, there is no default role.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JOB_SEEKER", "SEEKER":
		return RoleSeeker, nil
	case "JOB_POSTER", "POSTER":
		return RolePoster, nil
	default:
		return "", ErrUnknownRole
	}
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RolePoster
}
