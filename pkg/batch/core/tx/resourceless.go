package tx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// ResourcelessTransactionManager provides transactions that hold no database resource.
// Only the commit hooks take effect, which is what the in-memory repository and
// file sinks rely on.
type ResourcelessTransactionManager struct{}

// NewResourcelessTransactionManager creates a ResourcelessTransactionManager.
func NewResourcelessTransactionManager() *ResourcelessTransactionManager {
	return &ResourcelessTransactionManager{}
}

// ResourcelessTx is the Tx returned by ResourcelessTransactionManager.
type ResourcelessTx struct {
	Synchronizations
	ctx      context.Context
	finished bool
}

// Begin implements TransactionManager.
func (m *ResourcelessTransactionManager) Begin(ctx context.Context, _ ...*sql.TxOptions) (Tx, error) {
	return &ResourcelessTx{ctx: ctx}, nil
}

// Commit implements TransactionManager.
func (m *ResourcelessTransactionManager) Commit(t Tx) error {
	rt, err := asResourceless(t)
	if err != nil {
		return err
	}
	rt.finished = true
	return rt.CommitWith(rt.ctx, func() error { return nil }, func() error { return nil })
}

// Rollback implements TransactionManager.
func (m *ResourcelessTransactionManager) Rollback(t Tx) error {
	rt, err := asResourceless(t)
	if err != nil {
		return err
	}
	if rt.finished {
		return nil
	}
	rt.finished = true
	rt.TriggerAfterRollback()
	return nil
}

func asResourceless(t Tx) (*ResourcelessTx, error) {
	rt, ok := t.(*ResourcelessTx)
	if !ok {
		return nil, exception.NewConfigurationError("tx", fmt.Sprintf("invalid transaction type %T: expected *ResourcelessTx", t), nil)
	}
	return rt, nil
}

// ExecuteUpdate implements TxExecutor. There is no database behind a resourceless transaction.
func (t *ResourcelessTx) ExecuteUpdate(context.Context, interface{}, string, string, map[string]interface{}) (int64, error) {
	return 0, exception.NewConfigurationError("tx", "ExecuteUpdate is not supported by a resourceless transaction", nil)
}

// ExecuteUpsert implements TxExecutor. There is no database behind a resourceless transaction.
func (t *ResourcelessTx) ExecuteUpsert(context.Context, interface{}, string, []string, []string) (int64, error) {
	return 0, exception.NewConfigurationError("tx", "ExecuteUpsert is not supported by a resourceless transaction", nil)
}

// Savepoint implements Tx as a no-op.
func (t *ResourcelessTx) Savepoint(string) error { return nil }

// RollbackToSavepoint implements Tx as a no-op.
func (t *ResourcelessTx) RollbackToSavepoint(string) error { return nil }
