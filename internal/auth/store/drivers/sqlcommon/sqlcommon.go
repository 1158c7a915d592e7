// Package sqlcommon holds the database/sql repositories shared by the
// sqlite and postgres drivers. Queries are written with "?" placeholders and
// rebound per dialect.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/store"
)

// Dialect captures the few places where the SQL drivers differ.
type Dialect struct {
	Name string

	// Placeholder renders the nth (1-based) bind parameter.
	Placeholder func(n int) string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// QuestionPlaceholder renders "?" for every parameter.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$1", "$2", ...
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// Rebind rewrites "?" placeholders into the dialect's form. Queries in this
// package never contain a literal "?" inside a string.
func (d Dialect) Rebind(q string) string {
	if d.Placeholder == nil {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type base struct {
	db DBTX
	d  Dialect
}

func (b base) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.d.Rebind(q), args...)
}

func (b base) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.d.Rebind(q), args...)
}

func (b base) mapWriteErr(err error) error {
	if err != nil && b.d.IsUniqueViolation != nil && b.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// affectedOrNotFound turns a zero-row update into ErrNotFound.
func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Timestamps are stored as unix milliseconds so both dialects compare them
// numerically.

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
