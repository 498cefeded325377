package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	path   string
	logger *zap.Logger
}

// NewMigrator creates a migrator for the database at path
func NewMigrator(path string, logger *zap.Logger) *Migrator {
	return &Migrator{
		path:   path,
		logger: logger,
	}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	// The migrate instance owns its own connection so closing it
	// never touches the application pool.
	mg, err := migrate.NewWithSourceInstance("iofs", source, "sqlite3://"+m.path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return mg, nil
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(mg, m.logger)

	m.logger.Info("Starting database migrations", zap.String("path", m.path))
	if err := mg.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debug("Database schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, err := mg.Version()
	if err == nil {
		m.logger.Info("Database migrations completed successfully", zap.Uint("version", version))
	}
	return nil
}

// Down rolls back every applied migration
func (m *Migrator) Down() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(mg, m.logger)

	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

func closeMigrator(mg *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := mg.Close()
	if srcErr != nil {
		logger.Warn("Failed to close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Failed to close migration database", zap.Error(dbErr))
	}
}
