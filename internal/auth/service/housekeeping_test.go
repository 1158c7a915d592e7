package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/pkg/idx"
	"github.com/aussiebroadwan/jobtab/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	u, err := env.sessions.Register(ctx, "quin@example.com", "password1", domain.RoleSeeker)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-2 * time.Hour)
	stale := domain.RefreshSession{ID: idx.New().String(), UserID: u.ID, IssuedAt: past, ExpiresAt: past.Add(time.Hour)}
	live := domain.RefreshSession{ID: idx.New().String(), UserID: u.ID, IssuedAt: past, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	require.NoError(t, env.store.Sessions().CreateSession(ctx, stale))
	require.NoError(t, env.store.Sessions().CreateSession(ctx, live))

	require.NoError(t, env.store.ResetChallenges().PutResetChallenge(ctx, domain.PasswordResetChallenge{
		ID:          idx.New().String(),
		Email:       "quin@example.com",
		UserID:      u.ID,
		OTPHash:     "digest",
		MaxAttempts: 5,
		CreatedAt:   past,
		ExpiresAt:   past.Add(10 * time.Minute),
	}))

	hk := NewHousekeepingService(env.store.Sessions(), env.store.ResetChallenges(), slogx.Discard(), 0)
	require.Equal(t, time.Hour, hk.Interval)
	hk.Cleanup(ctx)

	_, err = env.store.Sessions().GetSession(ctx, stale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.store.Sessions().GetSession(ctx, live.ID)
	require.NoError(t, err)
	_, err = env.store.ResetChallenges().GetResetChallenge(ctx, "quin@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store.Sessions(), env.store.ResetChallenges(), slogx.Discard(), time.Minute)
	hk.Start()
	hk.Stop()
}
