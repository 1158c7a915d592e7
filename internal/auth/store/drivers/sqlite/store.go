package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlcommon"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect is the sqlcommon dialect for modernc sqlite.
var Dialect = sqlcommon.Dialect{
	Name:              "sqlite",
	Placeholder:       sqlcommon.QuestionPlaceholder,
	IsUniqueViolation: isUniqueViolation,
}

type Store struct {
	db  *sql.DB
	dsn string
}

var _ store.Store = (*Store)(nil)

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer. One connection keeps ":memory:"
	// databases shared and turns lock contention into queueing instead of
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Users() store.Users       { return sqlcommon.NewUsers(s.db, Dialect) }
func (s *Store) Sessions() store.Sessions { return sqlcommon.NewSessions(s.db, Dialect) }
func (s *Store) ResetChallenges() store.ResetChallenges {
	return sqlcommon.NewResetChallenges(s.db, Dialect)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
