// Package repository selects the JobRepository implementation configured under
// batch.repository and provides it with a matching TransactionManager.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration/filesystem"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	domain "github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/sql"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// JobRepositoryParams defines the dependencies of NewJobRepository.
type JobRepositoryParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Cfg        *config.Config
	DBResolver database.DBConnectionResolver `optional:"true"`
}

// JobRepositoryResult is the repository together with the transaction manager chunks use.
type JobRepositoryResult struct {
	fx.Out
	JobRepository domain.JobRepository
	TxManager     tx.TransactionManager
}

// NewJobRepository creates the repository of batch.repository.type. The sql repository runs
// chunk transactions on its own connection, so sink writes on that connection commit
// together with the step progress.
func NewJobRepository(p JobRepositoryParams) (JobRepositoryResult, error) {
	var result JobRepositoryResult
	switch p.Cfg.Batch.Repository.Type {
	case config.RepositoryTypeInMemory:
		result.JobRepository = inmemory.NewInMemoryJobRepository()
		result.TxManager = tx.NewResourcelessTransactionManager()
	case config.RepositoryTypeSQL:
		if p.DBResolver == nil {
			return result, exception.NewConfigurationError("repository", "the sql repository requires a DBConnectionResolver", nil)
		}
		dbName := p.Cfg.Batch.Repository.Database
		result.JobRepository = sqlrepo.NewSQLJobRepository(p.DBResolver, dbName)
		result.TxManager = gormadapter.NewGormTransactionManager(p.DBResolver, dbName)
	default:
		return result, exception.NewConfigurationError("repository", fmt.Sprintf("unknown repository.type %q", p.Cfg.Batch.Repository.Type), nil)
	}
	logger.Infof("JobRepository: %T", result.JobRepository)

	repo := result.JobRepository
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return repo.Close()
		},
	})
	return result, nil
}

// FrameworkMigrations returns the migration source of the repository tables when the sql
// repository is configured with auto_migrate.
func FrameworkMigrations(cfg *config.Config) []migration.Source {
	repoCfg := cfg.Batch.Repository
	if repoCfg.Type != config.RepositoryTypeSQL || !repoCfg.AutoMigrate {
		return nil
	}
	return []migration.Source{filesystem.FrameworkSource(repoCfg.Database)}
}

// Module provides the configured JobRepository and TransactionManager.
var Module = fx.Options(
	fx.Provide(NewJobRepository),
	fx.Provide(fx.Annotate(
		FrameworkMigrations,
		fx.ResultTags(`group:"`+migration.SourceGroup+`,flatten"`),
	)),
)
