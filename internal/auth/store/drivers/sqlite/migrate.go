package sqlite

import (
	"fmt"

	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlcommon"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlite/migrations"

	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// ApplyMigrations applies the embedded schema (users, refresh_sessions,
// password_reset_challenges) to the store's database.
func (s *Store) ApplyMigrations() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	return sqlcommon.Migrate(Dialect.Name, driver, migrations.Migrations)
}
