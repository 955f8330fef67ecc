package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgx_migrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "schema_migrations"

// migrationLogger adapts zerolog to migrate.Logger.
type migrationLogger struct {
	log zerolog.Logger
}

func (m *migrationLogger) Printf(format string, v ...any) {
	m.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m *migrationLogger) Verbose() bool {
	return m.log.GetLevel() <= zerolog.DebugLevel
}

// Migrate applies all embedded schema migrations to the latest version.
func Migrate(pool *pgxpool.Pool, log zerolog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgx_migrate.WithInstance(db, &pgx_migrate.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, pool.Config().ConnConfig.Database, driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	m.Log = &migrationLogger{log: log}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database schema is dirty at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	to, _, _ := m.Version()
	log.Info().Uint("from_version", from).Uint("to_version", to).Msg("database schema up to date")
	return nil
}
