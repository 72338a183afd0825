// Package database defines the named database connections used by the SQL job repository
// and by database item readers and writers.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

// DBExecutor defines the read and write operations shared by a connection and a transaction.
type DBExecutor interface {
	tx.TxExecutor

	// ExecuteQuery finds the rows matching query (AND-combined column conditions) into target.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced is ExecuteQuery with optional ordering and limit (0 means no limit).
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// Count counts the rows of model's table matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Pluck collects the distinct values of column into target.
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
}

// DBConnection is a named, pooled database connection.
type DBConnection interface {
	DBExecutor

	// Type returns the database type ("sqlite", "postgres", "mysql").
	Type() string
	// Name returns the connection name (e.g. "metadata").
	Name() string
	Close() error

	// IsTableNotExistError reports whether err means a table is missing, i.e. migrations have not run.
	IsTableNotExistError(err error) bool
	// IsDuplicateKeyError reports whether err is a unique constraint violation.
	IsDuplicateKeyError(err error) bool
	// RefreshConnection pings the pool.
	RefreshConnection(ctx context.Context) error
	// Config returns the settings the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
	// Executor returns the transaction carried by ctx when it was begun on this connection,
	// and the connection itself otherwise.
	Executor(ctx context.Context) DBExecutor
}

// DBConnectionResolver returns a healthy connection by name, reconnecting when needed.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBConnectionReconnector closes and reopens a named connection. Migrations that release
// the pool call it before the connection is used again.
type DBConnectionReconnector interface {
	Reconnect(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches the connections of one database type.
type DBProvider interface {
	// GetConnection returns the connection called name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// ForceReconnect closes and reopens the connection called name.
	ForceReconnect(name string) (DBConnection, error)
	// CloseAll closes every connection opened by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
}

// DBProviderGroup is the fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
