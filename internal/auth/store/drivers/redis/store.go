// Package redis serves sessions and reset challenges from Redis. User
// records stay in the SQL store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this driver.
const DefaultPrefix = "jobtab:auth:"

// challengeRetention keeps a challenge readable for a while after it
// expires, so a late verification reports "expired" rather than "not found".
const challengeRetention = time.Hour

// maxTxRetries bounds optimistic WATCH retries. A losing racer only needs
// one more round to observe the winner's write.
const maxTxRetries = 8

var ErrContention = errors.New("redis store: too much contention")

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis store: parse url: %w", err)
	}

	s := New(redis.NewClient(opts), DefaultPrefix)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{s: s} }

func (s *Store) ResetChallenges() store.ResetChallenges { return &challengesRepo{s: s} }

func (s *Store) sessionKey(id string) string      { return s.prefix + "session:" + id }
func (s *Store) userSessionsKey(uid string) string { return s.prefix + "user-sessions:" + uid }
func (s *Store) challengeKey(email string) string  { return s.prefix + "reset:" + email }

// getter is the part of redis.Client and redis.Tx used for reads.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) getJSON(ctx context.Context, c getter, key string, v any) error {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// watch runs fn under WATCH key, retrying when another client modified the
// key between read and EXEC.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := s.rdb.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}
