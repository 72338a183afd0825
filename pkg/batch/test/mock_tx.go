package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

// MockTx is a testify mock of tx.Tx. Commit hooks are recorded in the embedded
// Synchronizations, so tests can trigger them explicitly.
type MockTx struct {
	mock.Mock
	tx.Synchronizations
}

var _ tx.Tx = (*MockTx)(nil)

// ExecuteUpdate mocks tx.TxExecutor.ExecuteUpdate.
func (m *MockTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, operation, tableName, query)
	return args.Get(0).(int64), args.Error(1)
}

// ExecuteUpsert mocks tx.TxExecutor.ExecuteUpsert.
func (m *MockTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	args := m.Called(ctx, model, tableName, conflictColumns, updateColumns)
	return args.Get(0).(int64), args.Error(1)
}

// Savepoint mocks tx.Tx.Savepoint.
func (m *MockTx) Savepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// RollbackToSavepoint mocks tx.Tx.RollbackToSavepoint.
func (m *MockTx) RollbackToSavepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// MockTxManager is a testify mock of tx.TransactionManager.
type MockTxManager struct {
	mock.Mock
}

var _ tx.TransactionManager = (*MockTxManager)(nil)

// Begin mocks tx.TransactionManager.Begin.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit mocks tx.TransactionManager.Commit.
func (m *MockTxManager) Commit(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// Rollback mocks tx.TransactionManager.Rollback.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// FailingCommitManager wraps a TransactionManager and fails the first Failures commits
// with Err.
type FailingCommitManager struct {
	tx.TransactionManager
	Failures int
	Err      error

	commits int
}

// Commit fails while fewer than Failures commits were attempted, rolling t back instead.
func (m *FailingCommitManager) Commit(t tx.Tx) error {
	m.commits++
	if m.commits <= m.Failures {
		if err := m.TransactionManager.Rollback(t); err != nil {
			return err
		}
		return m.Err
	}
	return m.TransactionManager.Commit(t)
}

// Commits returns the number of attempted commits.
func (m *FailingCommitManager) Commits() int {
	return m.commits
}
