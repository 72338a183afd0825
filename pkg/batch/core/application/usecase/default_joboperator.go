package usecase

import (
	"context"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const operatorModule = "job_operator"

// DefaultJobOperator implements JobOperator with a JobRepository and a JobLauncher.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   JobLauncher
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a DefaultJobOperator.
func NewDefaultJobOperator(jobRepository repository.JobRepository, jobLauncher JobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   jobLauncher,
	}
}

// Restart resumes executionID. It must be the latest FAILED or STOPPED execution of its JobInstance.
func (o *DefaultJobOperator) Restart(ctx context.Context, job port.Job, executionID string) (*model.JobExecution, error) {
	prev, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewRepositoryError(operatorModule, fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err)
	}
	if prev.JobName != job.JobName() {
		return nil, exception.NewConfigurationError(operatorModule,
			fmt.Sprintf("JobExecution (ID: %s) belongs to job '%s', not '%s'", executionID, prev.JobName, job.JobName()), nil)
	}
	if prev.Status != model.BatchStatusFailed && prev.Status != model.BatchStatusStopped {
		return nil, exception.NewBatchError(operatorModule,
			fmt.Sprintf("JobExecution (ID: %s) has status %s", executionID, prev.Status), ErrJobNotRestartable, false, false)
	}
	latest, err := o.jobRepository.FindLatestJobExecution(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, exception.NewRepositoryError(operatorModule, "failed to load latest JobExecution", err)
	}
	if latest.ID != prev.ID {
		return nil, exception.NewBatchError(operatorModule,
			fmt.Sprintf("JobExecution (ID: %s) is superseded by JobExecution (ID: %s)", executionID, latest.ID), ErrJobNotRestartable, false, false)
	}

	logger.Infof("JobOperator: restarting JobExecution (ID: %s, Status: %s).", executionID, prev.Status)
	return o.jobLauncher.Launch(ctx, job, prev.Parameters, WithRestart())
}

// Abandon marks executionID ABANDONED. COMPLETED executions cannot be abandoned.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewRepositoryError(operatorModule, fmt.Sprintf("failed to load JobExecution (ID: %s)", executionID), err)
	}

	switch jobExecution.Status {
	case model.BatchStatusAbandoned:
		logger.Infof("JobExecution (ID: %s) is already ABANDONED.", executionID)
		return nil
	case model.BatchStatusCompleted:
		return exception.NewBatchErrorf(operatorModule, "JobExecution (ID: %s) is COMPLETED and cannot be abandoned", executionID)
	}
	if jobExecution.Status.IsRunning() {
		logger.Warnf("Abandoning JobExecution (ID: %s) in status %s; its process is assumed gone.", executionID, jobExecution.Status)
	}

	jobExecution.MarkAsAbandoned()
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewRepositoryError(operatorModule, fmt.Sprintf("failed to update JobExecution (ID: %s)", executionID), err)
	}
	logger.Infof("JobExecution (ID: %s) ABANDONED.", executionID)
	return nil
}
