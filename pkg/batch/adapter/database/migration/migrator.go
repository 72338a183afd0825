package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const (
	commandUp   = "up"
	commandDown = "down"
)

// migratorImpl implements Migrator on the pool of a DBConnection.
type migratorImpl struct {
	dbConn database.DBConnection
	dbType string
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

// ReleasesConnection implements Migrator. The postgres and mysql drivers pin a connection of
// the pool and close the pool with it.
func (m *migratorImpl) ReleasesConnection() bool {
	return m.dbType != "sqlite"
}

// getDatabaseDriver retrieves a migrate/v4 Driver based on the database type.
func (m *migratorImpl) getDatabaseDriver(sqlDB *sql.DB, tableName string) (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: tableName})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: tableName})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: tableName})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string, tableName string) error {
	logger.Infof("Executing migration '%s' on '%s' (Path: %s, Table: %s)", command, m.dbConn.Name(), path, tableName)

	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	dbDriver, err := m.getDatabaseDriver(sqlDB, tableName)
	if err != nil {
		_ = sourceDriver.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Closing the instance closes the *sql.DB it was given. An in-memory sqlite database
	// lives only as long as that pool, so sqlite keeps it open.
	defer func() {
		if m.ReleasesConnection() {
			if srcErr, dbErr := mInstance.Close(); srcErr != nil || dbErr != nil {
				logger.Warnf("Closing migrate instance of '%s': source=%v, database=%v", m.dbConn.Name(), srcErr, dbErr)
			}
			return
		}
		if err := sourceDriver.Close(); err != nil {
			logger.Warnf("Closing migration source of '%s': %v", m.dbConn.Name(), err)
		}
	}()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			mInstance.GracefulStop <- true
		case <-stop:
		}
	}()

	var migrateErr error
	switch command {
	case commandUp:
		migrateErr = mInstance.Up()
	case commandDown:
		migrateErr = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		if version, dirty, versionErr := mInstance.Version(); versionErr == nil {
			logger.Errorf("Migration '%s' failed at version %d (dirty: %t)", command, version, dirty)
		}
		return fmt.Errorf("migration failed for command '%s' (DB: %s, Path: %s): %w", command, m.dbType, path, migrateErr)
	}
	if errors.Is(migrateErr, migrate.ErrNoChange) {
		logger.Infof("Migration '%s' on '%s': no change.", command, m.dbConn.Name())
		return nil
	}
	logger.Infof("Migration '%s' on '%s' completed successfully.", command, m.dbConn.Name())
	return nil
}

// Up implements Migrator.
func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, commandUp, tableName)
}

// Down implements Migrator.
func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, commandDown, tableName)
}
