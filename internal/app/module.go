// Package app assembles the batch application: configuration, database connections,
// migrations, the job repository, metrics, listeners and the application jobs.
package app

import (
	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/internal/job"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/mysql"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/postgres"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/support/incrementer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// DBProviderMap is used by main.go to select the database providers by name.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DBProviderOptions returns the fx options registering the providers named in adaptors.
// Unknown names are logged and ignored.
func DBProviderOptions(adaptors []string) []fx.Option {
	options := make([]fx.Option, 0, len(adaptors))
	for _, name := range adaptors {
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))))
		logger.Debugf("DB Provider '%s' selected and registered.", name)
	}
	return options
}

// Module holds every module of the application except the configuration source and the
// database providers, which main.go supplies.
var Module = fx.Options(
	logger.Module,
	config.Module,
	gormadapter.Module,
	migration.Module,
	repository.Module,
	metrics.Module,
	listener.Module,
	usecase.Module,
	incrementer.Module,
	job.Module,
)
