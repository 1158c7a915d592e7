package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type challengeRecord struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	UserID      string     `json:"user_id,omitempty"`
	OTPHash     string     `json:"otp_hash"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

type challengesRepo struct{ s *Store }

func challengeTTL(c challengeRecord) time.Duration {
	ttl := time.Until(c.ExpiresAt) + challengeRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *challengesRepo) PutResetChallenge(ctx context.Context, c domain.PasswordResetChallenge) error {
	c.Email = domain.NormalizeEmail(c.Email)
	c.Attempts = 0
	c.UsedAt = nil

	rec := challengeRecord(c)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.s.rdb.Set(ctx, r.s.challengeKey(c.Email), data, challengeTTL(rec)).Err()
}

func (r *challengesRepo) GetResetChallenge(ctx context.Context, email string) (domain.PasswordResetChallenge, error) {
	var rec challengeRecord
	if err := r.s.getJSON(ctx, r.s.rdb, r.s.challengeKey(domain.NormalizeEmail(email)), &rec); err != nil {
		return domain.PasswordResetChallenge{}, err
	}
	return domain.PasswordResetChallenge(rec), nil
}

// update applies mutate to challenge id under WATCH. mutate returns false
// when the challenge is not in a state it may change.
func (r *challengesRepo) update(
	ctx context.Context,
	email, id string,
	mutate func(rec *challengeRecord) bool,
) (domain.PasswordResetChallenge, error) {
	key := r.s.challengeKey(domain.NormalizeEmail(email))

	var out challengeRecord
	err := r.s.watch(ctx, key, func(tx *redis.Tx) error {
		var rec challengeRecord
		if err := r.s.getJSON(ctx, tx, key, &rec); err != nil {
			return err
		}
		if rec.ID != id || !mutate(&rec) {
			return store.ErrNotFound
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, challengeTTL(rec))
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return domain.PasswordResetChallenge{}, err
	}
	return domain.PasswordResetChallenge(out), nil
}

func (r *challengesRepo) IncrementResetAttempts(
	ctx context.Context,
	email, id string,
	now time.Time,
) (domain.PasswordResetChallenge, error) {
	return r.update(ctx, email, id, func(rec *challengeRecord) bool {
		c := domain.PasswordResetChallenge(*rec)
		if c.Used() || c.Exhausted() || c.Expired(now) {
			return false
		}
		rec.Attempts++
		return true
	})
}

func (r *challengesRepo) MarkResetChallengeUsed(ctx context.Context, email, id string, now time.Time) error {
	_, err := r.update(ctx, email, id, func(rec *challengeRecord) bool {
		if rec.UsedAt != nil {
			return false
		}
		at := now.UTC()
		rec.UsedAt = &at
		return true
	})
	return err
}

// DeleteExpiredResetChallenges is a no-op, keys carry their own TTL.
func (r *challengesRepo) DeleteExpiredResetChallenges(context.Context, time.Time) (int64, error) {
	return 0, nil
}
