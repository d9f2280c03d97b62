package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"budget/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the latest migration version. Any database recorded at a
// different version is wiped and recreated by Upgrade.
const SchemaVersion uint = 1

const migrationsTable = "schema_migrations"

// Tables in drop order, children first.
var droppedTables = []string{"expenses", "category_budget", "monthly_budget", migrationsTable}

// SchemaManager owns table definitions and the version-upgrade policy.
// It must not run while other callers are using the database.
type SchemaManager struct {
	dsn    string
	logger *log.Logger
}

func NewSchemaManager(dsn string, logger *log.Logger) *SchemaManager {
	if logger == nil {
		logger = log.Discard()
	}
	return &SchemaManager{dsn: dsn, logger: logger.WithComponent(log.ComponentSchema)}
}

// Ensure brings the database to SchemaVersion, initialising an empty
// database and destructively upgrading one recorded at any other version.
func (s *SchemaManager) Ensure(ctx context.Context) error {
	version, dirty, err := s.Version()
	if err != nil {
		return err
	}
	switch {
	case version == 0 && !dirty:
		return s.Initialize(ctx)
	case version == SchemaVersion && !dirty:
		s.logger.DebugContext(ctx, "Schema up to date", "version", version)
		return nil
	default:
		if dirty {
			s.logger.WarnContext(ctx, "Schema left dirty by a failed migration", "version", version)
		}
		return s.Upgrade(ctx, version, SchemaVersion)
	}
}

// Version returns the recorded schema version; 0 means never initialised.
func (s *SchemaManager) Version() (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := s.withMigrate(func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

// Initialize creates the tables if absent. Running it again is a no-op.
func (s *SchemaManager) Initialize(ctx context.Context) error {
	err := s.withMigrate(func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Schema initialized",
		log.FieldOperation, log.OpMigrate,
		log.FieldNewVersion, SchemaVersion)
	return nil
}

// Upgrade drops every table and reinitialises. All stored data is lost;
// there is no partial recovery, so failures must be treated as fatal.
func (s *SchemaManager) Upgrade(ctx context.Context, oldVersion, newVersion uint) error {
	s.logger.WarnContext(ctx, "Recreating schema, existing data will be lost",
		log.FieldOperation, log.OpUpgrade,
		log.FieldOldVersion, oldVersion,
		log.FieldNewVersion, newVersion)

	db, err := sql.Open(driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("open upgrade database: %w", err)
	}
	defer db.Close()

	if err := dropTables(ctx, db); err != nil {
		return fmt.Errorf("upgrade %d -> %d: %w", oldVersion, newVersion, err)
	}
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("upgrade %d -> %d: %w", oldVersion, newVersion, err)
	}
	return nil
}

func dropTables(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop: %w", err)
	}
	defer tx.Rollback()

	for _, table := range droppedTables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// withMigrate runs fn against a migrate instance on a dedicated connection;
// closing the migrate instance closes the underlying database.
func (s *SchemaManager) withMigrate(fn func(*migrate.Migrate) error) error {
	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open(driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		migrateDB.Close()
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		d.Close()
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}
