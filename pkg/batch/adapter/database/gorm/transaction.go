package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

const txModule = "gorm-tx"

// GormTx implements tx.Tx on a gorm transaction. It also implements database.DBExecutor so
// that reads issued during a chunk see the chunk's own writes.
type GormTx struct {
	tx.Synchronizations
	gormExecutor
	ctx      context.Context
	connName string
	finished bool
}

var (
	_ tx.Tx               = (*GormTx)(nil)
	_ database.DBExecutor = (*GormTx)(nil)
)

// Savepoint implements tx.Tx.
func (t *GormTx) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTx) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager for one named connection.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a transaction manager on the connection dbName.
// The connection is resolved on every Begin, so a reconnect is picked up.
func NewGormTransactionManager(dbResolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{dbResolver: dbResolver, dbName: dbName}
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, exception.NewRepositoryError(txModule, fmt.Sprintf("failed to resolve DB connection '%s' for transaction", m.dbName), err)
	}
	adapter, err := AsGormAdapter(conn)
	if err != nil {
		return nil, exception.NewConfigurationError(txModule, "cannot begin a gorm transaction", err)
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}
	gormTx := adapter.GetGormDB().WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, exception.NewRepositoryError(txModule, "failed to begin transaction", gormTx.Error)
	}
	return &GormTx{
		gormExecutor: gormExecutor{db: gormTx},
		ctx:          ctx,
		connName:     m.dbName,
	}, nil
}

// Commit runs the before-commit hooks, commits and runs the after-commit hooks. When a hook
// or the commit fails the transaction is rolled back and the after-rollback hooks run.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gt, err := asGormTx(t)
	if err != nil {
		return err
	}
	if gt.finished {
		return exception.NewRepositoryError(txModule, "transaction already finished", sql.ErrTxDone)
	}
	gt.finished = true
	return gt.CommitWith(gt.ctx,
		func() error { return gt.db.Commit().Error },
		func() error { return ignoreTxDone(gt.db.Rollback().Error) },
	)
}

// Rollback implements tx.TransactionManager. Rolling back a finished transaction is a no-op,
// so callers may always roll back after a failed Commit.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gt, err := asGormTx(t)
	if err != nil {
		return err
	}
	if gt.finished {
		return nil
	}
	gt.finished = true
	rbErr := ignoreTxDone(gt.db.Rollback().Error)
	gt.TriggerAfterRollback()
	return rbErr
}

func asGormTx(t tx.Tx) (*GormTx, error) {
	gt, ok := t.(*GormTx)
	if !ok {
		return nil, exception.NewConfigurationError(txModule, fmt.Sprintf("invalid transaction type %T: expected *GormTx", t), nil)
	}
	return gt, nil
}

func ignoreTxDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return nil
	}
	return err
}
