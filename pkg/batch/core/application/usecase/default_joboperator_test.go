package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/test"
)

func TestJobOperator_Restart(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
	operator := usecase.NewDefaultJobOperator(repo, launcher)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a", script: []model.BatchStatus{model.BatchStatusStopped}}})

	stopped, err := launcher.Launch(ctx, job, params())
	require.NoError(t, err)

	other := newJob(t, repo, "other", []port.Step{&statusStep{name: "a"}})
	_, err = operator.Restart(ctx, other, stopped.ID)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))

	resumed, err := operator.Restart(ctx, job, stopped.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)

	_, err = operator.Restart(ctx, job, stopped.ID)
	assert.ErrorIs(t, err, usecase.ErrJobNotRestartable, "the stopped execution was abandoned by the restart")
	_, err = operator.Restart(ctx, job, resumed.ID)
	assert.ErrorIs(t, err, usecase.ErrJobNotRestartable)
}

func TestJobOperator_Abandon(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
	operator := usecase.NewDefaultJobOperator(repo, launcher)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}})

	stale := test.SaveTestExecution(t, repo, "job", params())
	_, err := launcher.Launch(ctx, job, params())
	require.ErrorIs(t, err, usecase.ErrJobExecutionAlreadyRunning)

	require.NoError(t, operator.Abandon(ctx, stale.ID))
	require.NoError(t, operator.Abandon(ctx, stale.ID), "abandoning twice is a no-op")

	_, err = launcher.Launch(ctx, job, params())
	assert.ErrorIs(t, err, usecase.ErrJobNotRestartable, "an abandoned run cannot be resumed")

	completed, err := launcher.Launch(ctx, job, params("input", "b.csv"))
	require.NoError(t, err)
	assert.Error(t, operator.Abandon(ctx, completed.ID))

	assert.Error(t, operator.Abandon(ctx, "missing"))
}

func TestJobExplorer(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
	explorer := usecase.NewSimpleJobExplorer(repo)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a", script: []model.BatchStatus{model.BatchStatusFailed}}})

	failed, err := launcher.Launch(ctx, job, params())
	require.NoError(t, err)
	resumed, err := launcher.Launch(ctx, job, params())
	require.NoError(t, err)

	executions, err := explorer.GetJobExecutions(ctx, failed.JobInstanceID)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, resumed.ID, executions[0].ID)

	last, err := explorer.GetLastJobExecution(ctx, failed.JobInstanceID)
	require.NoError(t, err)
	assert.Equal(t, resumed.ID, last.ID)

	je, err := explorer.GetJobExecution(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusAbandoned, je.Status)
	require.Len(t, je.StepExecutions, 1)

	names, err := explorer.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, names)
	count, err := explorer.GetJobInstanceCount(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = explorer.GetJobInstance(ctx, "missing")
	assert.True(t, exception.IsKind(err, exception.KindRepository))
}
