package migration_test

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	gormsqlite "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration/filesystem"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
)

func setupSQLite(t *testing.T) *gormadapter.GormDBConnectionResolver {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Batch.Databases["metadata"] = dbconfig.DatabaseConfig{
		Type:     gormsqlite.DBType,
		Database: filepath.Join(t.TempDir(), "metadata.db"),
	}
	resolver := gormadapter.NewResolver(cfg, gormsqlite.NewProvider(cfg))
	t.Cleanup(func() { _ = resolver.CloseAll() })
	return resolver
}

func hasTable(t *testing.T, resolver *gormadapter.GormDBConnectionResolver, table string) bool {
	t.Helper()
	conn, err := resolver.ResolveDBConnection(context.Background(), "metadata")
	require.NoError(t, err)
	adapter, err := gormadapter.AsGormAdapter(conn)
	require.NoError(t, err)
	return adapter.GetGormDB().Migrator().HasTable(table)
}

func TestMigrator_FrameworkUpAndDown(t *testing.T) {
	ctx := context.Background()
	resolver := setupSQLite(t)
	conn, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)

	migrator := migration.NewMigrator(conn)
	assert.False(t, migrator.ReleasesConnection())

	fsys := filesystem.FrameworkMigrationsFS()
	require.NoError(t, migrator.Up(ctx, fsys, "sqlite", migration.FrameworkMigrationsTable))
	for _, table := range []string{"batch_job_instance", "batch_job_execution", "batch_step_execution", "batch_checkpoint_data", migration.FrameworkMigrationsTable} {
		assert.True(t, hasTable(t, resolver, table), table)
	}
	require.NoError(t, migrator.Up(ctx, fsys, "sqlite", migration.FrameworkMigrationsTable), "a second run has nothing to apply")

	require.NoError(t, migrator.Down(ctx, fsys, "sqlite", migration.FrameworkMigrationsTable))
	assert.False(t, hasTable(t, resolver, "batch_job_instance"))
	assert.NoError(t, conn.RefreshConnection(ctx), "the pool stays open")
}

func TestMigrator_UnknownPath(t *testing.T) {
	ctx := context.Background()
	resolver := setupSQLite(t)
	conn, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)

	err = migration.NewMigrator(conn).Up(ctx, filesystem.FrameworkMigrationsFS(), "oracle", migration.FrameworkMigrationsTable)
	assert.Error(t, err)
}

func TestRunner_FrameworkAndAppSources(t *testing.T) {
	ctx := context.Background()
	resolver := setupSQLite(t)
	appFS := fstest.MapFS{
		"sqlite/000001_create_customers.up.sql":   {Data: []byte("CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"sqlite/000001_create_customers.down.sql": {Data: []byte("DROP TABLE customers;")},
	}

	runner := migration.NewRunner(resolver, resolver)
	sources := []migration.Source{
		filesystem.FrameworkSource("metadata"),
		{Name: "customers", Database: "metadata", FS: appFS},
	}
	require.NoError(t, runner.Run(ctx, sources...))
	require.NoError(t, runner.Run(ctx, sources...))

	assert.True(t, hasTable(t, resolver, "batch_job_instance"))
	assert.True(t, hasTable(t, resolver, "customers"))
	assert.True(t, hasTable(t, resolver, migration.FrameworkMigrationsTable))
	assert.True(t, hasTable(t, resolver, migration.AppMigrationsTable))
}
