// Package job defines the application jobs and contributes them to the job registry.
package job

import (
	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener/logging"
)

// Params are the dependencies shared by the job constructors.
type Params struct {
	fx.In
	Config           *config.Config
	JobRepository    repository.JobRepository
	TxManager        tx.TransactionManager
	DBResolver       database.DBConnectionResolver
	MetricRecorder   metrics.MetricRecorder
	Tracer           metrics.Tracer
	Logging          *logging.LoggingListener
	RunIDIncrementer port.JobParametersIncrementer `name:"runIdIncrementer"`
	// TimestampIncrementer gives helloJob a new instance per fresh run.
	TimestampIncrementer port.JobParametersIncrementer `name:"timestampIncrementer"`
}

func asJob(f interface{}) fx.Option {
	return fx.Provide(fx.Annotate(
		f,
		fx.As(new(port.Job)),
		fx.ResultTags(`group:"`+usecase.JobsGroup+`"`),
	))
}

// Module provides helloJob, fileJob and jobjdbc, and the customers table migrations.
var Module = fx.Options(
	asJob(NewHelloJob),
	asJob(NewFileJob),
	asJob(NewJdbcJob),
	fx.Provide(fx.Annotate(
		CustomerMigrations,
		fx.ResultTags(`group:"`+migration.SourceGroup+`,flatten"`),
	)),
)
