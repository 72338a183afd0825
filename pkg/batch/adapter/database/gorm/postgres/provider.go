// Package postgres provides a GORM DBProvider implementation for PostgreSQL databases.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
)

// DBType is the batch.databases type handled by this package.
const DBType = "postgres"

// SQLSTATE codes.
const (
	uniqueViolation = "23505"
	undefinedTable  = "42P01"
)

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(DBType, gormadapter.ErrorClassifier{
		IsDuplicateKey:  func(err error) bool { return hasCode(err, uniqueViolation) },
		IsTableNotExist: func(err error) bool { return hasCode(err, undefinedTable) },
	})
}

// ConnectionString builds the key/value DSN expected by gorm.io/driver/postgres.
// Schema becomes the search_path.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	return strings.Join(parts, " ")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// NewProvider creates the DBProvider for PostgreSQL connections.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, DBType)
}
