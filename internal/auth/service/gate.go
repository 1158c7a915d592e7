package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/pkg/jwtx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// Gate authenticates a bearer credential. A token is only good while its
// session exists: signature validity alone never authenticates.
//
// The order of checks is fixed: token (structure, signature, expiry, type),
// then session, then user. Every failure fails closed.
type Gate struct {
	Codec    *jwtx.Codec
	Sessions store.Sessions
	Users    store.Users

	// Now overrides the clock for session expiry. Defaults to time.Now.
	Now func() time.Time

	// LookupTimeout bounds each store lookup. A lookup that runs out of
	// time fails closed. Defaults to DefaultLookupTimeout.
	LookupTimeout time.Duration
}

const DefaultLookupTimeout = 2 * time.Second

func (g *Gate) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := g.LookupTimeout
	if d <= 0 {
		d = DefaultLookupTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Authenticate returns the identity behind bearer. An empty bearer is
// anonymous and yields (nil, nil).
func (g *Gate) Authenticate(ctx context.Context, bearer string) (*domain.Identity, error) {
	if bearer == "" {
		return nil, nil
	}
	l := slogx.FromContext(ctx)

	claims, err := g.Codec.VerifyAccess(bearer)
	if err != nil {
		l.Debug("access token rejected", slog.Any("reason", err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		l.Warn("verified token carries unknown role", slog.String("role", claims.Role))
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	// No retry: a store failure is treated exactly like an absent session
	sctx, cancel := g.lookupContext(ctx)
	sess, err := g.Sessions.GetSession(sctx, claims.SID)
	cancel()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("session lookup failed", slog.String("sid", claims.SID), slog.Any("err", err))
		}
		return nil, ErrSessionInvalid
	}
	if sess.UserID != claims.UserID() || sess.Expired(clock(g.Now)) {
		return nil, ErrSessionInvalid
	}

	uctx, cancel := g.lookupContext(ctx)
	_, err = g.Users.GetUserByID(uctx, claims.UserID())
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountGone
		}
		l.Error("user lookup failed", slog.String("user_id", claims.UserID()), slog.Any("err", err))
		return nil, ErrSessionInvalid
	}

	return &domain.Identity{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		Role:      role,
		SessionID: claims.SID,
	}, nil
}

// RequireRole returns ErrForbidden unless id holds one of roles.
func RequireRole(id *domain.Identity, roles ...domain.Role) error {
	if id == nil {
		return ErrSessionInvalid
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return ErrForbidden
}
