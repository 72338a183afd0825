// Package sql implements the JobRepository on a named gorm connection. Writes issued with a
// chunk transaction in the context join that transaction.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const (
	opCreate = "CREATE"
	opUpdate = "UPDATE"
)

// SQLJobRepository implements repository.JobRepository.
type SQLJobRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the batch.databases key of the metadata connection (e.g. "metadata").
	dbName string
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates a repository on the connection dbName.
func NewSQLJobRepository(dbResolver database.DBConnectionResolver, dbName string) *SQLJobRepository {
	return &SQLJobRepository{dbResolver: dbResolver, dbName: dbName}
}

// executor returns the connection and the executor to use for ctx: the transaction carried
// by ctx when it was begun on the metadata connection, the pool otherwise.
func (r *SQLJobRepository) executor(ctx context.Context, op string) (database.DBConnection, database.DBExecutor, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to resolve DB connection '%s'", r.dbName), err)
	}
	return conn, conn.Executor(ctx), nil
}

// --- JobInstance ---

// SaveJobInstance implements repository.JobInstance.
func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	const op = "SQLJobRepository.SaveJobInstance"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}
	entity := fromDomainJobInstance(instance)
	if _, err := exec.ExecuteUpdate(ctx, entity, opCreate, entity.TableName(), nil); err != nil {
		if conn.IsDuplicateKeyError(err) {
			return exception.NewRepositoryError(op,
				fmt.Sprintf("JobInstance of '%s' with parameters hash %s already exists: %v", instance.JobName, instance.ParametersHash, err),
				repository.ErrJobInstanceAlreadyExists)
		}
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save JobInstance (ID: %s)", instance.ID), err)
	}
	return nil
}

// FindJobInstanceByID implements repository.JobInstance.
func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByID"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entity JobInstanceEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": id}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find JobInstance by ID: %s", id), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(&entity), nil
}

// FindJobInstanceByJobNameAndParameters implements repository.JobInstance.
func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.FindJobInstanceByJobNameAndParameters"
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}

	var entities []JobInstanceEntity
	if err := exec.ExecuteQuery(ctx, &entities, map[string]interface{}{"job_name": jobName, "parameters_hash": hash}); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, exception.NewRepositoryError(op, "failed to find JobInstance", err)
	}
	for i := range entities {
		instance := toDomainJobInstance(&entities[i])
		if instance.Parameters.Equal(params) {
			return instance, nil
		}
		logger.Warnf("%s: JobInstance (ID: %s) hash matched but parameters mismatched. Possible hash collision.", op, instance.ID)
	}
	return nil, repository.ErrJobInstanceNotFound
}

// GetJobInstanceCount implements repository.JobInstance.
func (r *SQLJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	const op = "SQLJobRepository.GetJobInstanceCount"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return 0, err
	}
	count, err := exec.Count(ctx, &JobInstanceEntity{}, map[string]interface{}{"job_name": jobName})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewRepositoryError(op, "failed to count JobInstances", err)
	}
	return int(count), nil
}

// GetJobNames implements repository.JobInstance.
func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	const op = "SQLJobRepository.GetJobNames"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	jobNames := make([]string, 0)
	if err := exec.Pluck(ctx, &JobInstanceEntity{}, "job_name", &jobNames, nil); err != nil {
		if conn.IsTableNotExistError(err) {
			return []string{}, nil
		}
		return nil, exception.NewRepositoryError(op, "failed to pluck job names", err)
	}
	return jobNames, nil
}

// --- JobExecution ---

// SaveJobExecution implements repository.JobExecution. Step executions are saved separately.
func (r *SQLJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.SaveJobExecution"
	_, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}
	entity := fromDomainJobExecution(jobExecution)
	if _, err := exec.ExecuteUpdate(ctx, entity, opCreate, entity.TableName(), nil); err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", jobExecution.ID), err)
	}
	return nil
}

// UpdateJobExecution implements repository.JobExecution. The row is updated only while its
// version equals jobExecution.Version, which is then incremented.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"
	_, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}

	originalVersion := jobExecution.Version
	originalLastUpdated := jobExecution.LastUpdated
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	entity := fromDomainJobExecution(jobExecution)

	rowsAffected, err := exec.ExecuteUpdate(ctx, entity, opUpdate, entity.TableName(), map[string]interface{}{"version": originalVersion})
	if err != nil {
		jobExecution.Version, jobExecution.LastUpdated = originalVersion, originalLastUpdated
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", jobExecution.ID), err)
	}
	if rowsAffected == 0 {
		jobExecution.Version, jobExecution.LastUpdated = originalVersion, originalLastUpdated
		return exception.NewOptimisticLockingFailureException(op,
			fmt.Sprintf("JobExecution (ID: %s) with version %d not found for update", jobExecution.ID, originalVersion), nil)
	}
	return nil
}

// FindJobExecutionByID implements repository.JobExecution.
func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	return r.findOneJobExecution(ctx, "SQLJobRepository.FindJobExecutionByID", map[string]interface{}{"id": executionID}, "")
}

// FindLatestJobExecution implements repository.JobExecution.
func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	return r.findOneJobExecution(ctx, "SQLJobRepository.FindLatestJobExecution", map[string]interface{}{"job_instance_id": jobInstanceID}, "create_time desc")
}

func (r *SQLJobRepository) findOneJobExecution(ctx context.Context, op string, query map[string]interface{}, orderBy string) (*model.JobExecution, error) {
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entity JobExecutionEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entity, query, orderBy, 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find JobExecution %v", query), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrJobExecutionNotFound
	}

	jobExecution := toDomainJobExecution(&entity)
	stepExecutions, err := r.FindStepExecutionsByJobExecutionID(ctx, jobExecution.ID)
	if err != nil {
		return nil, err
	}
	for _, se := range stepExecutions {
		se.JobExecution = jobExecution
		jobExecution.AddStepExecution(se)
	}
	return jobExecution, nil
}

// FindJobExecutionsByJobInstance implements repository.JobExecution. Step executions are not
// loaded; use FindJobExecutionByID for the details of one execution.
func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	const op = "SQLJobRepository.FindJobExecutionsByJobInstance"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entities []JobExecutionEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_instance_id": jobInstance.ID}, "create_time desc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.JobExecution{}, nil
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find JobExecutions for JobInstance ID: %s", jobInstance.ID), err)
	}
	executions := make([]*model.JobExecution, len(entities))
	for i := range entities {
		executions[i] = toDomainJobExecution(&entities[i])
	}
	return executions, nil
}

// --- StepExecution ---

// SaveStepExecution implements repository.StepExecution.
func (r *SQLJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.SaveStepExecution"
	_, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}
	entity := fromDomainStepExecution(stepExecution, time.Now())
	if _, err := exec.ExecuteUpdate(ctx, entity, opCreate, entity.TableName(), nil); err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save StepExecution (ID: %s)", stepExecution.ID), err)
	}
	return nil
}

// UpdateStepExecution implements repository.StepExecution with the same version check as
// UpdateJobExecution.
func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"
	_, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}

	originalVersion := stepExecution.Version
	originalLastUpdated := stepExecution.LastUpdated
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	entity := fromDomainStepExecution(stepExecution, time.Time{})

	rowsAffected, err := exec.ExecuteUpdate(ctx, entity, opUpdate, entity.TableName(), map[string]interface{}{"version": originalVersion})
	if err != nil {
		stepExecution.Version, stepExecution.LastUpdated = originalVersion, originalLastUpdated
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to update StepExecution (ID: %s)", stepExecution.ID), err)
	}
	if rowsAffected == 0 {
		stepExecution.Version, stepExecution.LastUpdated = originalVersion, originalLastUpdated
		return exception.NewOptimisticLockingFailureException(op,
			fmt.Sprintf("StepExecution (ID: %s) with version %d not found for update", stepExecution.ID, originalVersion), nil)
	}
	return nil
}

// FindStepExecutionByID implements repository.StepExecution.
func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionByID"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entity StepExecutionEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": executionID}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrStepExecutionNotFound
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find StepExecution by ID: %s", executionID), err)
	}
	if entity.ID == "" {
		return nil, repository.ErrStepExecutionNotFound
	}
	return toDomainStepExecution(&entity), nil
}

// FindStepExecutionsByJobExecutionID implements repository.StepExecution.
func (r *SQLJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	const op = "SQLJobRepository.FindStepExecutionsByJobExecutionID"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entities []StepExecutionEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_execution_id": jobExecutionID}, "create_time asc", 0); err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.StepExecution{}, nil
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find StepExecutions by JobExecution ID: %s", jobExecutionID), err)
	}
	executions := make([]*model.StepExecution, len(entities))
	for i := range entities {
		executions[i] = toDomainStepExecution(&entities[i])
	}
	return executions, nil
}

// --- CheckpointData ---

// SaveCheckpointData implements repository.CheckpointDataRepository.
func (r *SQLJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	const op = "SQLJobRepository.SaveCheckpointData"
	_, exec, err := r.executor(ctx, op)
	if err != nil {
		return err
	}
	if data.LastUpdated.IsZero() {
		data.LastUpdated = time.Now()
	}
	entity := fromDomainCheckpointData(data)
	_, err = exec.ExecuteUpsert(ctx, entity, entity.TableName(),
		[]string{"step_execution_id"}, []string{"execution_context", "last_updated"})
	if err != nil {
		return exception.NewRepositoryError(op, fmt.Sprintf("failed to save CheckpointData for StepExecution (ID: %s)", data.StepExecutionID), err)
	}
	return nil
}

// FindCheckpointData implements repository.CheckpointDataRepository.
func (r *SQLJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	const op = "SQLJobRepository.FindCheckpointData"
	conn, exec, err := r.executor(ctx, op)
	if err != nil {
		return nil, err
	}
	var entity CheckpointDataEntity
	if err := exec.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"step_execution_id": stepExecutionID}, "", 1); err != nil {
		if conn.IsTableNotExistError(err) {
			return nil, repository.ErrCheckpointDataNotFound
		}
		return nil, exception.NewRepositoryError(op, fmt.Sprintf("failed to find CheckpointData by StepExecution ID: %s", stepExecutionID), err)
	}
	if entity.StepExecutionID == "" {
		return nil, repository.ErrCheckpointDataNotFound
	}
	return toDomainCheckpointData(&entity), nil
}

// Close implements repository.JobRepository. The connection belongs to its DBProvider.
func (r *SQLJobRepository) Close() error {
	return nil
}
