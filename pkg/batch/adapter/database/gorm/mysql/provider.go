// Package mysql provides a GORM DBProvider implementation for MySQL databases.
package mysql

import (
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
)

// DBType is the batch.databases type handled by this package.
const DBType = "mysql"

// MySQL server error numbers.
const (
	erDupEntry     = 1062
	erNoSuchTable  = 1146
	defaultAddress = "localhost:3306"
)

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(DBType, gormadapter.ErrorClassifier{
		IsDuplicateKey:  func(err error) bool { return hasNumber(err, erDupEntry) },
		IsTableNotExist: func(err error) bool { return hasNumber(err, erNoSuchTable) },
	})
}

// ConnectionString builds the DSN with mysql.Config, parsing time columns into time.Time.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = defaultAddress
	if c.Host != "" {
		dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	dsn.DBName = c.Database
	dsn.ParseTime = true
	// Migration scripts hold several statements.
	dsn.MultiStatements = true
	// Affected rows count matched rows, as on sqlite and postgres.
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

func hasNumber(err error, number uint16) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == number
}

// NewProvider creates the DBProvider for MySQL connections.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, DBType)
}
