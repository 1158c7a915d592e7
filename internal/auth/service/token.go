package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/idx"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// SessionService owns the login lifecycle: registration, login, refresh and
// logout. A login creates a RefreshSession, logout deletes it, and the Gate
// rejects any access token whose session is gone.
type SessionService struct {
	Codec      *jwtx.Codec
	Hasher     *cryptox.PasswordHasher
	Users      store.Users
	Sessions   store.Sessions
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock for session timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Register creates a user with an argon2id password hash.
func (s *SessionService) Register(ctx context.Context, email, password string, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, invalidField("role", "must be JOB_SEEKER or JOB_POSTER")
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := clock(s.Now)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID), slog.String("role", role.String()))
	return u, nil
}

// Login verifies the password and opens a new session. Unknown emails burn
// the same hashing work as a wrong password.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Hasher.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("login failed", slog.String("user_id", user.ID))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password for %s: %w", user.ID, err)
	}

	now := clock(s.Now)
	sess := domain.RefreshSession{
		ID:        idx.New().String(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.RefreshTTL),
	}
	if err := s.Sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	pair, err := s.issuePair(user, sess.ID, s.RefreshTTL)
	if err != nil {
		return nil, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID), slog.String("sid", sess.ID))
	return pair, nil
}

// Refresh exchanges a refresh token for a new token pair on the same
// session. The session's expiry does not move: a refresh token never
// outlives the login that produced it.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.Codec.VerifyRefresh(strings.TrimSpace(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sess, err := s.Sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := clock(s.Now)
	if sess.UserID != claims.UserID() || sess.Expired(now) {
		return nil, ErrSessionInvalid
	}

	user, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountGone
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return s.issuePair(user, sess.ID, sess.ExpiresAt.Sub(now))
}

// Logout deletes one session. Deleting an absent session is not an error.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.Sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slogx.FromContext(ctx).Info("logout", slog.String("sid", sessionID))
	return nil
}

// LogoutAll deletes every session of a user.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.Sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	slogx.FromContext(ctx).Info("logout all", slog.String("user_id", userID), slog.Int64("sessions", n))
	return n, nil
}

func (s *SessionService) issuePair(user domain.User, sid string, refreshTTL time.Duration) (*domain.TokenPair, error) {
	access, err := s.Codec.IssueAccess(user.ID, user.Email, user.Role.String(), sid, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Codec.IssueRefresh(user.ID, sid, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
		SessionID:    sid,
	}, nil
}
