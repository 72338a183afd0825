package gorm_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	gormsqlite "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

const testDB = "workload"

type productRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string
	Stock     int
	UpdatedAt time.Time
}

func (productRow) TableName() string { return "products" }

func setupResolver(t *testing.T) (*gormadapter.GormDBConnectionResolver, *gormadapter.GormDBAdapter) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Batch.Databases[testDB] = dbconfig.DatabaseConfig{
		Type:     gormsqlite.DBType,
		Database: filepath.Join(t.TempDir(), "workload.db"),
	}
	resolver := gormadapter.NewResolver(cfg, gormsqlite.NewProvider(cfg))
	t.Cleanup(func() { _ = resolver.CloseAll() })

	conn, err := resolver.ResolveDBConnection(context.Background(), testDB)
	require.NoError(t, err)
	adapter, err := gormadapter.AsGormAdapter(conn)
	require.NoError(t, err)
	require.NoError(t, adapter.GetGormDB().AutoMigrate(&productRow{}))
	return resolver, adapter
}

func TestResolver_UnknownConnection(t *testing.T) {
	resolver, _ := setupResolver(t)

	_, err := resolver.ResolveDBConnection(context.Background(), "missing")
	assert.ErrorContains(t, err, "'missing' not found")
	_, err = resolver.Reconnect(context.Background(), "missing")
	assert.Error(t, err)
}

func TestResolver_Reconnect(t *testing.T) {
	ctx := context.Background()
	resolver, adapter := setupResolver(t)
	_, err := adapter.ExecuteUpdate(ctx, &productRow{ID: "p1", Name: "pen"}, "CREATE", "", nil)
	require.NoError(t, err)

	conn, err := resolver.Reconnect(ctx, testDB)
	require.NoError(t, err)
	assert.NotSame(t, adapter, conn)
	assert.Error(t, adapter.RefreshConnection(ctx), "the previous pool is closed")

	var rows []productRow
	require.NoError(t, conn.ExecuteQuery(ctx, &rows, nil))
	assert.Len(t, rows, 1)

	resolved, err := resolver.ResolveDBConnection(ctx, testDB)
	require.NoError(t, err)
	assert.Same(t, conn, resolved)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = resolver.Reconnect(cancelled, testDB)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGormDBAdapter_Executor(t *testing.T) {
	ctx := context.Background()
	resolver, adapter := setupResolver(t)

	assert.Same(t, adapter, adapter.Executor(ctx))
	assert.Equal(t, gormsqlite.DBType, adapter.Type())
	assert.Equal(t, testDB, adapter.Name())

	txManager := gormadapter.NewGormTransactionManager(resolver, testDB)
	chunkTx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	txCtx := tx.WithTx(ctx, chunkTx)
	assert.Same(t, chunkTx, adapter.Executor(txCtx))

	// A transaction of another connection is not joined.
	otherTx := tx.NewResourcelessTransactionManager()
	foreign, err := otherTx.Begin(ctx)
	require.NoError(t, err)
	assert.Same(t, adapter, adapter.Executor(tx.WithTx(ctx, foreign)))

	// The connection is resolved without a ping while the transaction holds the only connection.
	conn, err := resolver.ResolveDBConnection(txCtx, testDB)
	require.NoError(t, err)
	_, err = conn.Executor(txCtx).ExecuteUpdate(txCtx, &productRow{ID: "p1", Name: "pen"}, "CREATE", "", nil)
	require.NoError(t, err)
	count, err := conn.Executor(txCtx).Count(txCtx, &productRow{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.NoError(t, txManager.Commit(chunkTx))

	count, err = adapter.Count(ctx, &productRow{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormTransactionManager_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	resolver, adapter := setupResolver(t)
	txManager := gormadapter.NewGormTransactionManager(resolver, testDB)

	var events []string
	committed, err := txManager.Begin(ctx)
	require.NoError(t, err)
	committed.OnBeforeCommit(func(context.Context) error {
		events = append(events, "before")
		return nil
	})
	committed.OnAfterCommit(func() { events = append(events, "after") })
	committed.OnAfterRollback(func() { events = append(events, "rollback") })
	_, err = committed.ExecuteUpdate(ctx, &productRow{ID: "p1", Name: "pen", Stock: 1}, "CREATE", "", nil)
	require.NoError(t, err)
	require.NoError(t, txManager.Commit(committed))
	assert.Equal(t, []string{"before", "after"}, events)
	assert.Error(t, txManager.Commit(committed), "a finished transaction cannot commit twice")

	events = nil
	rolledBack, err := txManager.Begin(ctx)
	require.NoError(t, err)
	rolledBack.OnAfterCommit(func() { events = append(events, "after") })
	rolledBack.OnAfterRollback(func() { events = append(events, "rollback") })
	_, err = rolledBack.ExecuteUpdate(ctx, &productRow{ID: "p2", Name: "ink"}, "CREATE", "", nil)
	require.NoError(t, err)
	require.NoError(t, txManager.Rollback(rolledBack))
	require.NoError(t, txManager.Rollback(rolledBack))
	assert.Equal(t, []string{"rollback"}, events)

	var rows []productRow
	require.NoError(t, adapter.ExecuteQuery(ctx, &rows, nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
}

func TestGormTx_Savepoint(t *testing.T) {
	ctx := context.Background()
	resolver, adapter := setupResolver(t)
	txManager := gormadapter.NewGormTransactionManager(resolver, testDB)

	chunkTx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	_, err = chunkTx.ExecuteUpdate(ctx, &productRow{ID: "p1", Name: "pen"}, "CREATE", "", nil)
	require.NoError(t, err)
	require.NoError(t, chunkTx.Savepoint("item_2"))
	_, err = chunkTx.ExecuteUpdate(ctx, &productRow{ID: "p2", Name: "ink"}, "CREATE", "", nil)
	require.NoError(t, err)
	require.NoError(t, chunkTx.RollbackToSavepoint("item_2"))
	require.NoError(t, txManager.Commit(chunkTx))

	var rows []productRow
	require.NoError(t, adapter.ExecuteQuery(ctx, &rows, nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
}

func TestGormExecutor_UpdateAndUpsert(t *testing.T) {
	ctx := context.Background()
	_, adapter := setupResolver(t)

	row := &productRow{ID: "p1", Name: "pen", Stock: 5}
	_, err := adapter.ExecuteUpdate(ctx, row, "CREATE", "", nil)
	require.NoError(t, err)

	row.Stock = 0
	affected, err := adapter.ExecuteUpdate(ctx, row, "UPDATE", "", map[string]interface{}{"stock": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	affected, err = adapter.ExecuteUpdate(ctx, row, "UPDATE", "", map[string]interface{}{"stock": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected, "the condition no longer matches")

	_, err = adapter.ExecuteUpsert(ctx, &productRow{ID: "p1", Name: "pencil", Stock: 9}, "", []string{"id"}, []string{"name"})
	require.NoError(t, err)
	_, err = adapter.ExecuteUpsert(ctx, &productRow{ID: "p1", Name: "ignored"}, "", []string{"id"}, nil)
	require.NoError(t, err)

	var stored []productRow
	require.NoError(t, adapter.ExecuteQueryAdvanced(ctx, &stored, map[string]interface{}{"id": "p1"}, "id", 1))
	require.Len(t, stored, 1)
	assert.Equal(t, "pencil", stored[0].Name)
	assert.Equal(t, 0, stored[0].Stock, "zero values are written by UPDATE")

	var names []string
	require.NoError(t, adapter.Pluck(ctx, &productRow{}, "name", &names, nil))
	assert.Equal(t, []string{"pencil"}, names)

	_, err = adapter.ExecuteUpdate(ctx, row, "MERGE", "", nil)
	assert.ErrorContains(t, err, "unsupported update operation")
}

func TestGormDBAdapter_ErrorClassification(t *testing.T) {
	ctx := context.Background()
	_, adapter := setupResolver(t)

	_, err := adapter.ExecuteUpdate(ctx, &productRow{ID: "p1", Name: "pen"}, "CREATE", "", nil)
	require.NoError(t, err)
	_, err = adapter.ExecuteUpdate(ctx, &productRow{ID: "p1", Name: "pen"}, "CREATE", "", nil)
	require.Error(t, err)
	assert.True(t, adapter.IsDuplicateKeyError(err))
	assert.False(t, adapter.IsTableNotExistError(err))

	var rows []productRow
	err = adapter.GetGormDB().Table("no_such_rows").Find(&rows).Error
	require.Error(t, err)
	assert.True(t, adapter.IsTableNotExistError(err))
	assert.False(t, adapter.IsDuplicateKeyError(err))
	assert.False(t, gormadapter.IsDuplicateKeyError(gormsqlite.DBType, nil))
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := gormadapter.Open(dbconfig.DatabaseConfig{Type: "oracle"})
	assert.ErrorContains(t, err, "no dialector registered")

	_, err = gormadapter.Open(dbconfig.DatabaseConfig{Type: gormsqlite.DBType})
	assert.ErrorContains(t, err, "path cannot be empty")
}
