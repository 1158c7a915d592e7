// Package storetest is a conformance suite run by every store driver.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Harness is the set of repositories under test. Users may be nil for
// drivers that do not hold user records; Sessions and ResetChallenges then
// get synthetic user ids.
type Harness struct {
	Users           store.Users
	Sessions        store.Sessions
	ResetChallenges store.ResetChallenges
}

// Run executes every applicable suite.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Run("Users", func(t *testing.T) {
		h := newHarness(t)
		if h.Users == nil {
			t.Skip("driver has no user records")
		}
		RunUsers(t, h.Users)
	})
	t.Run("Sessions", func(t *testing.T) { RunSessions(t, newHarness(t)) })
	t.Run("ResetChallenges", func(t *testing.T) { RunResetChallenges(t, newHarness(t)) })
}

// seedUser returns a user id usable as a foreign key in h.
func seedUser(t *testing.T, h Harness, email string) string {
	t.Helper()

	id := idx.New().String()
	if h.Users == nil {
		return id
	}

	now := time.Now().UTC()
	require.NoError(t, h.Users.CreateUser(context.Background(), domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		Role:         domain.RoleSeeker,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return id
}

func RunUsers(t *testing.T, users store.Users) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "Jane@Example.com",
		PasswordHash: "hash-1",
		Role:         domain.RolePoster,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, users.CreateUser(ctx, u))

	t.Run("get by id", func(t *testing.T) {
		got, err := users.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "jane@example.com", got.Email)
		require.Equal(t, domain.RolePoster, got.Role)
		require.Equal(t, "hash-1", got.PasswordHash)
		require.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("get by email ignores case", func(t *testing.T) {
		got, err := users.GetUserByEmail(ctx, "  JANE@example.COM")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := users.GetUserByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = users.GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := u
		dup.ID = idx.New().String()
		dup.Email = "jane@EXAMPLE.com"
		require.ErrorIs(t, users.CreateUser(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("update password", func(t *testing.T) {
		later := now.Add(time.Minute)
		require.NoError(t, users.UpdatePasswordHash(ctx, u.ID, "hash-2", later))

		got, err := users.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "hash-2", got.PasswordHash)
		require.True(t, later.Equal(got.UpdatedAt))

		require.ErrorIs(t, users.UpdatePasswordHash(ctx, idx.New().String(), "x", later), store.ErrNotFound)
	})
}

func RunSessions(t *testing.T, h Harness) {
	ctx := context.Background()
	repo := h.Sessions
	now := time.Now().UTC().Truncate(time.Millisecond)

	alice := seedUser(t, h, "alice@example.com")
	bob := seedUser(t, h, "bob@example.com")

	newSession := func(userID string, ttl time.Duration) domain.RefreshSession {
		s := domain.RefreshSession{
			ID:        idx.New().String(),
			UserID:    userID,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		require.NoError(t, repo.CreateSession(ctx, s))
		return s
	}

	t.Run("create and get", func(t *testing.T) {
		s := newSession(alice, time.Hour)

		got, err := repo.GetSession(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.UserID, got.UserID)
		require.True(t, s.IssuedAt.Equal(got.IssuedAt))
		require.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("missing is not found", func(t *testing.T) {
		_, err := repo.GetSession(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newSession(alice, time.Hour)

		require.NoError(t, repo.DeleteSession(ctx, s.ID))
		require.NoError(t, repo.DeleteSession(ctx, s.ID))

		_, err := repo.GetSession(ctx, s.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete all for user", func(t *testing.T) {
		a1 := newSession(alice, time.Hour)
		a2 := newSession(alice, time.Hour)
		b1 := newSession(bob, time.Hour)

		n, err := repo.DeleteUserSessions(ctx, alice)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(2))

		for _, id := range []string{a1.ID, a2.ID} {
			_, err := repo.GetSession(ctx, id)
			require.ErrorIs(t, err, store.ErrNotFound)
		}

		_, err = repo.GetSession(ctx, b1.ID)
		require.NoError(t, err, "other users keep their sessions")

		n, err = repo.DeleteUserSessions(ctx, alice)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("expired sessions are swept or never kept", func(t *testing.T) {
		expired := domain.RefreshSession{
			ID:        idx.New().String(),
			UserID:    bob,
			IssuedAt:  now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}
		require.NoError(t, repo.CreateSession(ctx, expired))
		live := newSession(bob, time.Hour)

		_, err := repo.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)

		_, err = repo.GetSession(ctx, expired.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = repo.GetSession(ctx, live.ID)
		require.NoError(t, err)
	})
}

func RunResetChallenges(t *testing.T, h Harness) {
	ctx := context.Background()
	repo := h.ResetChallenges
	now := time.Now().UTC().Truncate(time.Millisecond)

	newChallenge := func(email, userID string) domain.PasswordResetChallenge {
		return domain.PasswordResetChallenge{
			ID:          idx.New().String(),
			Email:       email,
			UserID:      userID,
			OTPHash:     "digest-" + idx.New().String(),
			MaxAttempts: 5,
			CreatedAt:   now,
			ExpiresAt:   now.Add(10 * time.Minute),
		}
	}

	t.Run("put and get", func(t *testing.T) {
		uid := seedUser(t, h, "carol@example.com")
		c := newChallenge("Carol@Example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		got, err := repo.GetResetChallenge(ctx, "carol@example.com")
		require.NoError(t, err)
		require.Equal(t, c.ID, got.ID)
		require.Equal(t, "carol@example.com", got.Email)
		require.Equal(t, uid, got.UserID)
		require.Equal(t, c.OTPHash, got.OTPHash)
		require.Zero(t, got.Attempts)
		require.Equal(t, 5, got.MaxAttempts)
		require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
		require.Nil(t, got.UsedAt)
	})

	t.Run("missing is not found", func(t *testing.T) {
		_, err := repo.GetResetChallenge(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("decoy has no user", func(t *testing.T) {
		c := newChallenge("ghost@example.com", "")
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		got, err := repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
		require.True(t, got.Decoy())
	})

	t.Run("put replaces outright", func(t *testing.T) {
		uid := seedUser(t, h, "dave@example.com")
		first := newChallenge("dave@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, first))

		_, err := repo.IncrementResetAttempts(ctx, first.Email, first.ID, now)
		require.NoError(t, err)
		require.NoError(t, repo.MarkResetChallengeUsed(ctx, first.Email, first.ID, now))

		second := newChallenge("dave@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, second))

		got, err := repo.GetResetChallenge(ctx, second.Email)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)
		require.Equal(t, second.OTPHash, got.OTPHash)
		require.Zero(t, got.Attempts, "attempts are not merged")
		require.Nil(t, got.UsedAt, "a used challenge is not revived")

		// The old id no longer matches anything
		_, err = repo.IncrementResetAttempts(ctx, first.Email, first.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment stops at the cap", func(t *testing.T) {
		uid := seedUser(t, h, "erin@example.com")
		c := newChallenge("erin@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		for want := 1; want <= c.MaxAttempts; want++ {
			got, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, now)
			require.NoError(t, err)
			require.Equal(t, want, got.Attempts)
		}

		_, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
		require.Equal(t, c.MaxAttempts, got.Attempts, "closed challenges are not counted")
	})

	t.Run("increment refuses expired", func(t *testing.T) {
		uid := seedUser(t, h, "fay@example.com")
		c := newChallenge("fay@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		_, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, c.ExpiresAt.Add(time.Millisecond))
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
		require.Zero(t, got.Attempts)
	})

	t.Run("increment accepts the expiry instant", func(t *testing.T) {
		uid := seedUser(t, h, "flo@example.com")
		c := newChallenge("flo@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		got, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, c.ExpiresAt)
		require.NoError(t, err)
		require.Equal(t, 1, got.Attempts)
	})

	t.Run("mark used once", func(t *testing.T) {
		uid := seedUser(t, h, "gus@example.com")
		c := newChallenge("gus@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		require.NoError(t, repo.MarkResetChallengeUsed(ctx, c.Email, c.ID, now))
		require.ErrorIs(t, repo.MarkResetChallengeUsed(ctx, c.Email, c.ID, now), store.ErrNotFound)

		_, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
		require.NotNil(t, got.UsedAt)
	})

	t.Run("concurrent increments at the last attempt", func(t *testing.T) {
		uid := seedUser(t, h, "hal@example.com")
		c := newChallenge("hal@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		for range c.MaxAttempts - 1 {
			_, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, now)
			require.NoError(t, err)
		}

		const racers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementResetAttempts(ctx, c.Email, c.ID, now)
				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, success, "exactly one racer takes the last attempt")

		got, err := repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
		require.Equal(t, c.MaxAttempts, got.Attempts)
	})

	t.Run("sweep keeps open challenges", func(t *testing.T) {
		uid := seedUser(t, h, "ivy@example.com")
		c := newChallenge("ivy@example.com", uid)
		require.NoError(t, repo.PutResetChallenge(ctx, c))

		_, err := repo.DeleteExpiredResetChallenges(ctx, now)
		require.NoError(t, err)

		_, err = repo.GetResetChallenge(ctx, c.Email)
		require.NoError(t, err)
	})
}
