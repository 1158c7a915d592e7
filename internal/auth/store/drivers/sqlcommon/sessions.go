package sqlcommon

import (
	"context"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
)

// Sessions implements store.Sessions.
type Sessions struct{ base }

func NewSessions(db DBTX, d Dialect) *Sessions { return &Sessions{base{db: db, d: d}} }

func (r *Sessions) CreateSession(ctx context.Context, s domain.RefreshSession) error {
	_, err := r.exec(ctx,
		`INSERT INTO sessions (id, user_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, toMillis(s.IssuedAt), toMillis(s.ExpiresAt),
	)
	return r.mapWriteErr(err)
}

func (r *Sessions) GetSession(ctx context.Context, id string) (domain.RefreshSession, error) {
	var (
		s                   domain.RefreshSession
		issuedAt, expiresAt int64
	)
	err := r.queryRow(ctx,
		`SELECT id, user_id, issued_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &issuedAt, &expiresAt)
	if err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}

	s.IssuedAt = fromMillis(issuedAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return s, nil
}

func (r *Sessions) DeleteSession(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *Sessions) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return affected(r.exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID))
}

func (r *Sessions) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now)))
}
