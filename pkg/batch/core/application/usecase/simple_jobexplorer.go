package usecase

import (
	"context"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const explorerModule = "job_explorer"

// SimpleJobExplorer implements JobExplorer on top of a JobRepository.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository repository.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: jobRepository}
}

// GetJobExecution retrieves a JobExecution by its ID.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewRepositoryError(explorerModule, fmt.Sprintf("failed to retrieve JobExecution (ID: %s)", executionID), err)
	}
	return jobExecution, nil
}

// GetJobExecutions retrieves the executions of a JobInstance.
func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	jobInstance, err := e.GetJobInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	jobExecutions, err := e.jobRepository.FindJobExecutionsByJobInstance(ctx, jobInstance)
	if err != nil {
		return nil, exception.NewRepositoryError(explorerModule, fmt.Sprintf("failed to retrieve JobExecutions of JobInstance (ID: %s)", instanceID), err)
	}
	logger.Debugf("Retrieved %d JobExecutions of JobInstance (ID: %s).", len(jobExecutions), instanceID)
	return jobExecutions, nil
}

// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	jobExecution, err := e.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewRepositoryError(explorerModule, fmt.Sprintf("failed to retrieve the latest JobExecution of JobInstance (ID: %s)", instanceID), err)
	}
	return jobExecution, nil
}

// GetJobInstance retrieves a JobInstance by its ID.
func (e *SimpleJobExplorer) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	jobInstance, err := e.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewRepositoryError(explorerModule, fmt.Sprintf("failed to retrieve JobInstance (ID: %s)", instanceID), err)
	}
	return jobInstance, nil
}

// GetJobInstanceCount counts the JobInstances of a job.
func (e *SimpleJobExplorer) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	count, err := e.jobRepository.GetJobInstanceCount(ctx, jobName)
	if err != nil {
		return 0, exception.NewRepositoryError(explorerModule, fmt.Sprintf("failed to count JobInstances of '%s'", jobName), err)
	}
	return count, nil
}

// GetJobNames retrieves all recorded job names.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := e.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewRepositoryError(explorerModule, "failed to retrieve job names", err)
	}
	return jobNames, nil
}
