package migration

import (
	"context"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// runParams defines the dependencies of registerMigrations.
type runParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	Resolver    database.DBConnectionResolver
	Reconnector database.DBConnectionReconnector `optional:"true"`
	Sources     []Source                         `group:"migration_sources"`
}

func registerMigrations(p runParams) {
	if len(p.Sources) == 0 {
		return
	}
	runner := NewRunner(p.Resolver, p.Reconnector)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Infof("Applying %d migration source(s).", len(p.Sources))
			return runner.Run(ctx, p.Sources...)
		},
	})
}

// Module applies every Source of the "migration_sources" group when the application starts,
// before any job runs.
var Module = fx.Options(
	fx.Invoke(registerMigrations),
)

// AsSource annotates a Source constructor for the "migration_sources" group.
func AsSource(f interface{}) fx.Option {
	return fx.Provide(fx.Annotate(f, fx.ResultTags(`group:"`+SourceGroup+`"`)))
}
