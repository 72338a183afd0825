// Package usecase launches jobs and exposes their batch metadata.
package usecase

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

// JobOperator performs operator actions on recorded executions.
type JobOperator interface {
	// Restart resumes the FAILED or STOPPED execution executionID of job.
	// It returns the final state of the new JobExecution.
	Restart(ctx context.Context, job port.Job, executionID string) (*model.JobExecution, error)

	// Abandon marks a non-complete execution ABANDONED so its run is no longer resumable.
	// It is the recovery path for executions left active by a crashed process.
	Abandon(ctx context.Context, executionID string) error
}

// JobExplorer queries batch metadata (JobInstance, JobExecution, StepExecution).
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution and its step executions by ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves the executions of a JobInstance, latest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the latest JobExecution of a JobInstance.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetJobInstance retrieves a JobInstance by ID.
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)

	// GetJobInstanceCount counts the JobInstances of a job.
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)

	// GetJobNames retrieves the names of all jobs with at least one JobInstance.
	GetJobNames(ctx context.Context) ([]string, error)
}
