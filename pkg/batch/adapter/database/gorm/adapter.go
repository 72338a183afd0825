// Package gorm implements the database adapter on gorm: pooled named connections,
// a transaction manager for chunk transactions and the dialector registry used by the
// sqlite, postgres and mysql subpackages.
package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	gormExecutor
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an opened *gorm.DB.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &GormDBAdapter{
		gormExecutor: gormExecutor{db: db},
		sqlDB:        sqlDB,
		cfg:          cfg,
		dbType:       cfg.Type,
		name:         name,
	}, nil
}

// GetGormDB returns the underlying *gorm.DB instance.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

// Close closes the pool.
func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

// Type implements database.DBConnection.
func (a *GormDBAdapter) Type() string {
	return a.dbType
}

// Name implements database.DBConnection.
func (a *GormDBAdapter) Name() string {
	return a.name
}

// RefreshConnection implements database.DBConnection.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return a.sqlDB.PingContext(ctx)
}

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// GetSQLDB implements database.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

// IsTableNotExistError implements database.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(a.dbType, err)
}

// IsDuplicateKeyError implements database.DBConnection.
func (a *GormDBAdapter) IsDuplicateKeyError(err error) bool {
	return IsDuplicateKeyError(a.dbType, err)
}

// Executor implements database.DBConnection.
func (a *GormDBAdapter) Executor(ctx context.Context) database.DBExecutor {
	if t, ok := gormTxFromContext(ctx, a.name); ok {
		return t
	}
	return a
}

// DB returns the *gorm.DB of the transaction carried by ctx when it was begun on this
// connection, and the pool otherwise. Item readers and writers use it to join the chunk.
func (a *GormDBAdapter) DB(ctx context.Context) *gorm.DB {
	if t, ok := gormTxFromContext(ctx, a.name); ok {
		return t.db.WithContext(ctx)
	}
	return a.db.WithContext(ctx)
}

func gormTxFromContext(ctx context.Context, connName string) (*GormTx, bool) {
	t, ok := tx.TxFromContext(ctx)
	if !ok {
		return nil, false
	}
	gt, ok := t.(*GormTx)
	if !ok || gt.connName != connName {
		return nil, false
	}
	return gt, true
}

// AsGormAdapter returns conn as a *GormDBAdapter.
func AsGormAdapter(conn database.DBConnection) (*GormDBAdapter, error) {
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is %T, not a gorm connection", conn.Name(), conn)
	}
	return adapter, nil
}
