package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
//
// Sessions and ResetChallenges can also be served by the redis driver, so
// services depend on the sub-repository interfaces rather than on Store.
type Store interface {
	Users() Users
	Sessions() Sessions
	ResetChallenges() ResetChallenges

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Users is the user-record collaborator.
type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists on a duplicate
	// email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error
}

// Sessions is the refresh-session collaborator. Absence of a session is
// authoritative: callers treat it as revocation.
type Sessions interface {
	CreateSession(ctx context.Context, s domain.RefreshSession) error

	// GetSession returns ErrNotFound when the session does not exist.
	GetSession(ctx context.Context, id string) (domain.RefreshSession, error)

	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, id string) error

	// DeleteUserSessions removes every session of a user and returns how
	// many were removed.
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredSessions is storage hygiene only, expiry is always
	// checked at read time.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ResetChallenges holds at most one password reset challenge per email.
type ResetChallenges interface {
	// PutResetChallenge creates the challenge for c.Email, replacing any
	// previous one including its attempt counter.
	PutResetChallenge(ctx context.Context, c domain.PasswordResetChallenge) error

	// GetResetChallenge returns ErrNotFound when no challenge exists.
	GetResetChallenge(ctx context.Context, email string) (domain.PasswordResetChallenge, error)

	// IncrementResetAttempts atomically counts one attempt against challenge
	// id, but only while it is still open at now (unused, unexpired and
	// under its cap). It returns the updated challenge, or ErrNotFound when
	// the challenge is gone, was replaced or is no longer open.
	IncrementResetAttempts(ctx context.Context, email, id string, now time.Time) (domain.PasswordResetChallenge, error)

	// MarkResetChallengeUsed sets used_at on challenge id if it is not
	// already set. Returns ErrNotFound otherwise, so only one caller can
	// consume a challenge.
	MarkResetChallengeUsed(ctx context.Context, email, id string, now time.Time) error

	// DeleteExpiredResetChallenges removes expired and used challenges.
	DeleteExpiredResetChallenges(ctx context.Context, now time.Time) (int64, error)
}
