// Package tx abstracts the transaction that wraps each chunk of a step. A chunk's sink
// writes and the step's progress are made durable together when the transaction commits.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines write operations that can run inside a transaction.
type TxExecutor interface {
	// ExecuteUpdate runs "CREATE", "UPDATE" or "DELETE" for model on tableName. For UPDATE and
	// DELETE, query holds the AND-combined column conditions.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)
	// ExecuteUpsert inserts model, updating updateColumns when conflictColumns collide.
	// Empty updateColumns means DO NOTHING on conflict.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing transaction.
type Tx interface {
	TxExecutor

	Savepoint(name string) error
	RollbackToSavepoint(name string) error

	// OnBeforeCommit registers fn to run just before the commit. An error aborts the commit
	// and rolls the transaction back. Sinks that cannot join the transaction flush here.
	OnBeforeCommit(fn func(ctx context.Context) error)
	// OnAfterCommit registers fn to run once the commit succeeded.
	OnAfterCommit(fn func())
	// OnAfterRollback registers fn to run when the transaction is rolled back, including a
	// rollback caused by a failing OnBeforeCommit hook.
	OnAfterRollback(fn func())
}

// TransactionManager manages the lifecycle of transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type txKey struct{}

// WithTx returns a context carrying t, so repositories and writers join the same transaction.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// TxFromContext returns the transaction carried by ctx.
func TxFromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok && t != nil
}
