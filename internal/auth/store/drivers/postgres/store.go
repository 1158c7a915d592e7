package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/jobtab/internal/auth/store"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlcommon"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect is the sqlcommon dialect for Postgres via pgx.
var Dialect = sqlcommon.Dialect{
	Name:              "postgres",
	Placeholder:       sqlcommon.DollarPlaceholder,
	IsUniqueViolation: isUniqueViolation,
}

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens a Postgres connection pool using the pgx stdlib driver and
// checks it is reachable.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
