package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

type sessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionsRepo struct{ s *Store }

// CreateSession stores the session with a TTL matching its expiry and adds
// it to the user's index set. An already expired session is not written.
//
// The index lives as long as its longest-lived member: its expiry only ever
// moves later, so a short session never evicts the ids of longer ones.
func (r *sessionsRepo) CreateSession(ctx context.Context, sess domain.RefreshSession) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(sessionRecord(sess))
	if err != nil {
		return err
	}

	setKey := r.s.userSessionsKey(sess.UserID)
	return r.s.watch(ctx, setKey, func(tx *redis.Tx) error {
		// -2 when the set does not exist yet, -1 when it has no expiry.
		current, err := tx.PTTL(ctx, setKey).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.s.sessionKey(sess.ID), data, ttl)
			pipe.SAdd(ctx, setKey, sess.ID)
			if current == -2 || (current >= 0 && ttl > current) {
				pipe.PExpireAt(ctx, setKey, sess.ExpiresAt)
			}
			return nil
		})
		return err
	})
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.RefreshSession, error) {
	var rec sessionRecord
	if err := r.s.getJSON(ctx, r.s.rdb, r.s.sessionKey(id), &rec); err != nil {
		return domain.RefreshSession{}, err
	}
	return domain.RefreshSession(rec), nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	var rec sessionRecord
	err := r.s.getJSON(ctx, r.s.rdb, r.s.sessionKey(id), &rec)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.s.sessionKey(id))
		pipe.SRem(ctx, r.s.userSessionsKey(rec.UserID), id)
		return nil
	})
	return err
}

// DeleteUserSessions watches the user's index so a session created while
// the members are being read is not missed.
func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	setKey := r.s.userSessionsKey(userID)

	var deleted int64
	err := r.s.watch(ctx, setKey, func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, setKey).Result()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, r.s.sessionKey(id))
		}

		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				del = pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, setKey)
			return nil
		})
		if err != nil {
			return err
		}
		if del != nil {
			deleted = del.Val()
		}
		return nil
	})
	return deleted, err
}

// DeleteExpiredSessions is a no-op, keys carry their own TTL.
func (r *sessionsRepo) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}
