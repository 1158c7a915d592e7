package postgres

import (
	"fmt"

	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/postgres/migrations"
	"github.com/aussiebroadwan/jobtab/internal/auth/store/drivers/sqlcommon"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
)

// ApplyMigrations applies the embedded schema to the connected database.
func (s *Store) ApplyMigrations() error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	return sqlcommon.Migrate(Dialect.Name, driver, migrations.Migrations)
}
