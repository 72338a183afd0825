// Package test provides fakes, mocks and model factories shared by the package tests.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
)

// NewTestJobParameters creates JobParameters for testing.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// NewTestJobInstance creates a JobInstance for testing.
func NewTestJobInstance(t testing.TB, jobName string, params model.JobParameters) *model.JobInstance {
	t.Helper()
	ji, err := model.NewJobInstance(jobName, params)
	require.NoError(t, err)
	return ji
}

// NewTestJobExecution creates a JobExecution in state STARTED for testing.
func NewTestJobExecution(jobName string, params model.JobParameters) *model.JobExecution {
	je := model.NewJobExecution(model.NewID(), jobName, params)
	je.Status = model.BatchStatusStarted
	return je
}

// NewTestStepExecution creates a StepExecution attached to jobExecution.
func NewTestStepExecution(jobExecution *model.JobExecution, stepName string) *model.StepExecution {
	se := model.NewStepExecution(jobExecution, stepName)
	jobExecution.AddStepExecution(se)
	return se
}

// SaveTestExecution persists a job instance, a STARTED execution and one step execution per
// step name, and returns the execution.
func SaveTestExecution(t testing.TB, repo repository.JobRepository, jobName string, params model.JobParameters, stepNames ...string) *model.JobExecution {
	t.Helper()
	ctx := context.Background()

	ji := NewTestJobInstance(t, jobName, params)
	require.NoError(t, repo.SaveJobInstance(ctx, ji))
	je := model.NewJobExecution(ji.ID, jobName, params)
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	for _, name := range stepNames {
		require.NoError(t, repo.SaveStepExecution(ctx, NewTestStepExecution(je, name)))
	}
	return je
}

// NewTestExecutionContext creates an ExecutionContext for testing.
func NewTestExecutionContext(data map[string]interface{}) model.ExecutionContext {
	ec := model.NewExecutionContext()
	for k, v := range data {
		ec.Put(k, v)
	}
	return ec
}

// NewTimePtr returns a pointer to t.
func NewTimePtr(t time.Time) *time.Time {
	return &t
}
