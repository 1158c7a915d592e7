package sqlcommon

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/domain"
)

const userColumns = `id, email, password_hash, role, created_at, updated_at`

// Users implements store.Users.
type Users struct{ base }

func NewUsers(db DBTX, d Dialect) *Users { return &Users{base{db: db, d: d}} }

func scanUser(row scanner) (domain.User, error) {
	var (
		u                    domain.User
		role                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &createdAt, &updatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s has role %q: %w", u.ID, role, err)
	}
	u.Role = r
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *Users) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *Users) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		domain.NormalizeEmail(email),
	))
}

func (r *Users) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID,
		domain.NormalizeEmail(u.Email),
		u.PasswordHash,
		u.Role.String(),
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	return r.mapWriteErr(err)
}

func (r *Users) UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error {
	return affectedOrNotFound(r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, toMillis(now), userID,
	))
}
