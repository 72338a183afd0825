package migration

import (
	"context"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const runnerModule = "migration"

// Runner applies migration sources to their connections in order.
type Runner struct {
	resolver    database.DBConnectionResolver
	reconnector database.DBConnectionReconnector
	newMigrator func(database.DBConnection) Migrator
}

// NewRunner creates a Runner. reconnector reopens connections whose pool a migration closed.
func NewRunner(resolver database.DBConnectionResolver, reconnector database.DBConnectionReconnector) *Runner {
	return &Runner{
		resolver:    resolver,
		reconnector: reconnector,
		newMigrator: NewMigrator,
	}
}

// Run applies every pending migration of sources. It stops at the first failure.
func (r *Runner) Run(ctx context.Context, sources ...Source) error {
	for _, src := range sources {
		if err := r.apply(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, src Source) error {
	conn, err := r.resolver.ResolveDBConnection(ctx, src.Database)
	if err != nil {
		return exception.NewConfigurationError(runnerModule, fmt.Sprintf("cannot resolve connection '%s' for migrations '%s'", src.Database, src.Name), err)
	}
	dir := src.Dir
	if dir == "" {
		dir = conn.Type()
	}
	table := src.Table
	if table == "" {
		table = AppMigrationsTable
	}

	migrator := r.newMigrator(conn)
	if err := migrator.Up(ctx, src.FS, dir, table); err != nil {
		return exception.NewRepositoryError(runnerModule, fmt.Sprintf("migrations '%s' failed on '%s'", src.Name, src.Database), err)
	}
	if migrator.ReleasesConnection() {
		if r.reconnector == nil {
			return exception.NewConfigurationError(runnerModule, fmt.Sprintf("connection '%s' must be reopened after migrations but no reconnector is configured", src.Database), nil)
		}
		if _, err := r.reconnector.Reconnect(ctx, src.Database); err != nil {
			return exception.NewRepositoryError(runnerModule, fmt.Sprintf("failed to reopen connection '%s' after migrations", src.Database), err)
		}
		logger.Debugf("Reopened connection '%s' after migrations '%s'.", src.Database, src.Name)
	}
	return nil
}
