package sqlcommon

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
)

const challengeColumns = `email, id, user_id, otp_hash, attempts, max_attempts, created_at, expires_at, used_at`

// ResetChallenges implements store.ResetChallenges.
type ResetChallenges struct{ base }

func NewResetChallenges(db DBTX, d Dialect) *ResetChallenges {
	return &ResetChallenges{base{db: db, d: d}}
}

func scanChallenge(row scanner) (domain.PasswordResetChallenge, error) {
	var (
		c                    domain.PasswordResetChallenge
		userID               sql.NullString
		createdAt, expiresAt int64
		usedAt               sql.NullInt64
	)
	err := row.Scan(
		&c.Email, &c.ID, &userID, &c.OTPHash,
		&c.Attempts, &c.MaxAttempts,
		&createdAt, &expiresAt, &usedAt,
	)
	if err != nil {
		return domain.PasswordResetChallenge{}, mapNotFound(err)
	}

	c.UserID = userID.String
	c.CreatedAt = fromMillis(createdAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.UsedAt = fromNullMillis(usedAt)
	return c, nil
}

func (r *ResetChallenges) PutResetChallenge(ctx context.Context, c domain.PasswordResetChallenge) error {
	_, err := r.exec(ctx, `
		INSERT INTO reset_challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, NULL)
		ON CONFLICT (email) DO UPDATE SET
			id           = excluded.id,
			user_id      = excluded.user_id,
			otp_hash     = excluded.otp_hash,
			attempts     = 0,
			max_attempts = excluded.max_attempts,
			created_at   = excluded.created_at,
			expires_at   = excluded.expires_at,
			used_at      = NULL`,
		domain.NormalizeEmail(c.Email),
		c.ID,
		nullString(c.UserID),
		c.OTPHash,
		c.MaxAttempts,
		toMillis(c.CreatedAt),
		toMillis(c.ExpiresAt),
	)
	return err
}

func (r *ResetChallenges) GetResetChallenge(ctx context.Context, email string) (domain.PasswordResetChallenge, error) {
	return scanChallenge(r.queryRow(ctx,
		`SELECT `+challengeColumns+` FROM reset_challenges WHERE email = ?`,
		domain.NormalizeEmail(email),
	))
}

// IncrementResetAttempts is a single conditional UPDATE, so the row lock the
// database takes for it is what serialises concurrent attempts on one email.
func (r *ResetChallenges) IncrementResetAttempts(
	ctx context.Context,
	email, id string,
	now time.Time,
) (domain.PasswordResetChallenge, error) {
	return scanChallenge(r.queryRow(ctx, `
		UPDATE reset_challenges
		SET attempts = attempts + 1
		WHERE email = ?
		  AND id = ?
		  AND used_at IS NULL
		  AND attempts < max_attempts
		  AND expires_at >= ?
		RETURNING `+challengeColumns,
		domain.NormalizeEmail(email), id, toMillis(now),
	))
}

func (r *ResetChallenges) MarkResetChallengeUsed(ctx context.Context, email, id string, now time.Time) error {
	return affectedOrNotFound(r.exec(ctx,
		`UPDATE reset_challenges SET used_at = ? WHERE email = ? AND id = ? AND used_at IS NULL`,
		toMillis(now), domain.NormalizeEmail(email), id,
	))
}

func (r *ResetChallenges) DeleteExpiredResetChallenges(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.exec(ctx,
		`DELETE FROM reset_challenges WHERE expires_at < ? OR used_at IS NOT NULL`,
		toMillis(now),
	))
}
