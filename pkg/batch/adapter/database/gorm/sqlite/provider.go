// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
)

// DBType is the batch.databases type handled by this package.
const DBType = "sqlite"

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		if err := ensureDir(cfg.Database); err != nil {
			return nil, err
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(DBType, gormadapter.ErrorClassifier{
		IsDuplicateKey:  isDuplicateKey,
		IsTableNotExist: isTableNotExist,
	})
}

// ConnectionString returns the file path with a busy timeout, so a second connection
// waits for the writer instead of failing with SQLITE_BUSY.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if strings.Contains(c.Database, "?") {
		return c.Database
	}
	return c.Database + "?_busy_timeout=5000"
}

// ensureDir creates the directory of a database file path.
func ensureDir(database string) error {
	if database == ":memory:" || strings.HasPrefix(database, "file:") {
		return nil
	}
	dir := filepath.Dir(database)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory of SQLite database '%s': %w", database, err)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isTableNotExist(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrError &&
		strings.Contains(sqliteErr.Error(), "no such table")
}

// NewProvider creates the DBProvider for sqlite connections.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, DBType)
}
