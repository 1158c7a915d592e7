package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/notify"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/pkg/cryptox"
	"github.com/aussiebroadwan/jobtab/pkg/idx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// RecoveryService runs the forgot-password flow: issue a one-time code by
// email, then trade a correct code for a new password. A successful reset
// revokes every session of the user.
type RecoveryService struct {
	Users      store.Users
	Sessions   store.Sessions
	Challenges store.ResetChallenges
	Hasher     *cryptox.PasswordHasher
	Sender     notify.OTPSender

	// OTPKey keys the digests stored in place of codes.
	OTPKey      []byte
	OTPLength   int
	OTPTTL      time.Duration
	MaxAttempts int

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// RequestReset issues a fresh challenge for email, replacing any previous
// one. The outcome is the same whether or not the account exists: unknown
// emails get a decoy challenge and no notification.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	var userID string
	user, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		userID = user.ID
	case errors.Is(err, store.ErrNotFound):
	default:
		return fmt.Errorf("load user: %w", err)
	}

	code, err := cryptox.GenerateOTP(s.otpLength())
	if err != nil {
		return err
	}

	now := clock(s.Now)
	c := domain.PasswordResetChallenge{
		ID:          idx.New().String(),
		Email:       email,
		UserID:      userID,
		OTPHash:     cryptox.OTPDigest(s.OTPKey, email, code),
		MaxAttempts: s.maxAttempts(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.OTPTTL),
	}
	if err := s.Challenges.PutResetChallenge(ctx, c); err != nil {
		return fmt.Errorf("store reset challenge: %w", err)
	}

	if userID == "" {
		l.Debug("password reset requested for unknown email", slog.String("email", slogx.MaskEmail(email)))
		return nil
	}

	if err := s.Sender.SendOTP(ctx, email, code); err != nil {
		l.Warn("reset code delivery failed", slog.String("user_id", userID), slog.Any("err", err))
	}
	l.Info("password reset requested", slog.String("user_id", userID), slog.String("challenge_id", c.ID))
	return nil
}

// VerifyReset checks code against the open challenge for email and, when it
// matches, sets newPassword and revokes all sessions.
//
// Every submitted code counts as one attempt. The count is taken atomically
// before the code is compared, so concurrent guesses can never exceed the
// cap between them.
func (s *RecoveryService) VerifyReset(ctx context.Context, email, code, newPassword string) error {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)
	now := clock(s.Now)

	c, err := s.Challenges.GetResetChallenge(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetNotFound
		}
		return fmt.Errorf("load reset challenge: %w", err)
	}
	if err := classifyClosed(c, now); err != nil {
		return err
	}

	c, err = s.Challenges.IncrementResetAttempts(ctx, email, c.ID, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.closedReason(ctx, email, now)
		}
		return fmt.Errorf("count reset attempt: %w", err)
	}

	if !cryptox.OTPEqual(s.OTPKey, email, code, c.OTPHash) || c.Decoy() {
		l.Info("reset code rejected",
			slog.String("challenge_id", c.ID),
			slog.Int("attempts", c.Attempts),
			slog.Int("max_attempts", c.MaxAttempts),
		)
		if c.Exhausted() {
			return ErrResetAttemptsExceeded
		}
		return ErrResetInvalidCode
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Challenges.MarkResetChallengeUsed(ctx, email, c.ID, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetNotFound
		}
		return fmt.Errorf("consume reset challenge: %w", err)
	}

	if err := s.Users.UpdatePasswordHash(ctx, c.UserID, hash, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	n, err := s.Sessions.DeleteUserSessions(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	l.Info("password reset completed", slog.String("user_id", c.UserID), slog.Int64("sessions_revoked", n))
	return nil
}

// closedReason re-reads the challenge after a lost race and reports why it
// no longer accepts attempts.
func (s *RecoveryService) closedReason(ctx context.Context, email string, now time.Time) error {
	c, err := s.Challenges.GetResetChallenge(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetNotFound
		}
		return fmt.Errorf("load reset challenge: %w", err)
	}
	if err := classifyClosed(c, now); err != nil {
		return err
	}
	// Replaced by a newer challenge that is still open.
	return ErrResetNotFound
}

func classifyClosed(c domain.PasswordResetChallenge, now time.Time) error {
	switch {
	case c.Used():
		return ErrResetNotFound
	case c.Expired(now):
		return ErrResetExpired
	case c.Exhausted():
		return ErrResetAttemptsExceeded
	}
	return nil
}

func (s *RecoveryService) otpLength() int {
	if s.OTPLength == 0 {
		return cryptox.MinOTPDigits
	}
	return s.OTPLength
}

func (s *RecoveryService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return domain.DefaultResetMaxAttempts
	}
	return s.MaxAttempts
}
