package job

import (
	"embed"
	"io/fs"

	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/internal/step/listener"
	"github.com/ssyoni/hello-spring-batch/internal/step/processor"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/step/reader"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/step/writer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/job/runner"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/item"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/configbinder"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// Names of jobjdbc and its step.
const (
	JdbcJobName  = "jobjdbc"
	JdbcStepName = "jdbcStep"
)

//go:embed resources/migrations
var rawCustomerMigrationsFS embed.FS

// JdbcJobProperties are read from batch.jobs.jobjdbc.
type JdbcJobProperties struct {
	// Database is the batch.databases key holding the customers table. It defaults to the
	// repository database so customer updates commit with the step checkpoint.
	Database  string `yaml:"database"`
	ChunkSize int    `yaml:"chunk_size"`
	PageSize  int    `yaml:"page_size"`
	// AutoMigrate creates and seeds the customers table at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

func jdbcJobProperties(cfg *config.Config) (JdbcJobProperties, error) {
	props := JdbcJobProperties{
		Database:    cfg.Batch.Repository.Database,
		ChunkSize:   1,
		PageSize:    10,
		AutoMigrate: true,
	}
	err := configbinder.BindProperties(cfg.JobProperties(JdbcJobName), &props)
	return props, err
}

// NewJdbcJob creates jobjdbc: every customer is read in id order, its name normalized and the
// row updated in the chunk transaction.
func NewJdbcJob(p Params) (*runner.SimpleJob, error) {
	props, err := jdbcJobProperties(p.Config)
	if err != nil {
		return nil, err
	}

	customerReader, err := reader.NewGormPagingItemReader[domain.Customer]("customerReader", p.DBResolver, props.Database, reader.GormQuery{
		Table:   "customers",
		Columns: []string{"id", "name", "age"},
		OrderBy: "id",
	}, props.PageSize)
	if err != nil {
		return nil, err
	}
	customerWriter, err := writer.NewGormItemWriter("customerWriter", p.DBResolver, props.Database, writer.GormItemWriterConfig[domain.Customer]{
		Table: "customers",
		Mode:  writer.WriteModeUpdate,
		Key: func(c domain.Customer) map[string]interface{} {
			return map[string]interface{}{"id": c.ID}
		},
		AssertUpdates: true,
	})
	if err != nil {
		return nil, err
	}

	step, err := item.NewChunkStep[domain.Customer, domain.Customer](
		JdbcStepName,
		customerReader,
		processor.NewCustomerItemProcessor(),
		customerWriter,
		props.ChunkSize,
		p.JobRepository,
		p.TxManager,
		item.WithPolicies(p.Config.Batch),
		item.WithStepListeners(p.Logging),
		item.WithChunkListeners(p.Logging),
		item.WithSkipListeners(p.Logging),
		item.WithRetryListeners(p.Logging),
		item.WithMetricRecorder(p.MetricRecorder),
		item.WithTracer(p.Tracer),
	)
	if err != nil {
		return nil, err
	}

	return runner.NewSimpleJob(JdbcJobName, p.JobRepository, []port.Step{step},
		runner.WithJobListeners(p.Logging, listener.NewJobCompletionNotificationListener(p.DBResolver, props.Database)),
		runner.WithMetricRecorder(p.MetricRecorder),
		runner.WithTracer(p.Tracer),
	)
}

// CustomerMigrationsFS returns the customers table scripts, one directory per database type.
func CustomerMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawCustomerMigrationsFS, "resources/migrations")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for customer migration FS: %v", err)
	}
	return subFS
}

// CustomerMigrations returns the migration source of the customers table, or nothing when
// jobjdbc.auto_migrate is off or its database is not configured.
func CustomerMigrations(cfg *config.Config) ([]migration.Source, error) {
	props, err := jdbcJobProperties(cfg)
	if err != nil {
		return nil, err
	}
	if !props.AutoMigrate {
		return nil, nil
	}
	if _, ok := cfg.Batch.Databases[props.Database]; !ok {
		logger.Warnf("jobjdbc: database '%s' is not configured under batch.databases; customers table is not migrated.", props.Database)
		return nil, nil
	}
	return []migration.Source{{
		Name:     "customers",
		Database: props.Database,
		FS:       CustomerMigrationsFS(),
		Table:    migration.AppMigrationsTable,
	}}, nil
}
