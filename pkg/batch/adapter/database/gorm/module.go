package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
)

// Module provides the GormDBConnectionResolver. Dialect packages contribute the providers
// to the "db_providers" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(fx.Self()),
		fx.As(new(database.DBConnectionResolver)),
		fx.As(new(database.DBConnectionReconnector)),
	)),
	fx.Invoke(registerCloseHook),
)

func registerCloseHook(lc fx.Lifecycle, resolver *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return resolver.CloseAll()
		},
	})
}
