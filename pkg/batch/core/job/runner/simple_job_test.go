package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/job/runner"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/tasklet"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// fakeStep finishes its step execution with status and returns err.
type fakeStep struct {
	name   string
	status model.BatchStatus
	err    error
	calls  int
	onRun  func(ctx context.Context)
}

func (s *fakeStep) StepName() string { return s.name }

func (s *fakeStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	s.calls++
	if s.onRun != nil {
		s.onRun(ctx)
	}
	_ = se.MarkAsStarted()
	switch s.status {
	case model.BatchStatusCompleted:
		_ = se.MarkAsCompleted()
	case model.BatchStatusStopped:
		_ = se.MarkAsStopped()
	default:
		se.MarkAsFailed(s.err)
	}
	return s.err
}

func completed(name string) *fakeStep {
	return &fakeStep{name: name, status: model.BatchStatusCompleted}
}

type recordingJobListener struct {
	before, after int
	status        model.BatchStatus
}

func (l *recordingJobListener) BeforeJob(ctx context.Context, je *model.JobExecution) { l.before++ }

func (l *recordingJobListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	l.after++
	l.status = je.Status
}

func newExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, name string) *model.JobExecution {
	t.Helper()
	ji, err := model.NewJobInstance(name, model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(context.Background(), ji))
	je := model.NewJobExecution(ji.ID, name, ji.Parameters)
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func TestNewSimpleJob_Validation(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	tests := []struct {
		name    string
		jobName string
		repo    *inmemory.InMemoryJobRepository
		steps   []port.Step
	}{
		{"empty name", "", repo, []port.Step{completed("a")}},
		{"no steps", "job", repo, nil},
		{"duplicate step", "job", repo, []port.Step{completed("a"), completed("a")}},
		{"nil step", "job", repo, []port.Step{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runner.NewSimpleJob(tt.jobName, tt.repo, tt.steps)
			require.Error(t, err)
			assert.True(t, exception.IsKind(err, exception.KindConfiguration))
		})
	}

	_, err := runner.NewSimpleJob("job", nil, []port.Step{completed("a")})
	assert.Error(t, err)
}

func TestSimpleJob_RunsStepsInOrder(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	var order []string
	first, second := completed("first"), completed("second")
	first.onRun = func(context.Context) { order = append(order, "first") }
	second.onRun = func(context.Context) { order = append(order, "second") }
	listener := &recordingJobListener{}

	job, err := runner.NewSimpleJob("orderedJob", repo, []port.Step{first, second}, runner.WithJobListeners(listener))
	require.NoError(t, err)
	je := newExecution(t, repo, "orderedJob")

	require.NoError(t, job.Run(context.Background(), je))

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, model.ExitStatusCompleted, je.ExitStatus)
	assert.Equal(t, "second", je.CurrentStepName)
	assert.Equal(t, 1, listener.before)
	assert.Equal(t, 1, listener.after)
	assert.Equal(t, model.BatchStatusCompleted, listener.status)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	require.Len(t, stored.StepExecutions, 2)
	assert.Equal(t, "first", stored.StepExecutions[0].StepName)
	assert.Equal(t, "second", stored.StepExecutions[1].StepName)
}

func TestSimpleJob_FailedStepStopsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	boom := exception.NewSinkWriteError("writer", "disk full", nil, false)
	failing := &fakeStep{name: "failing", status: model.BatchStatusFailed, err: boom}
	after := completed("after")

	job, err := runner.NewSimpleJob("failingJob", repo, []port.Step{completed("before"), failing, after})
	require.NoError(t, err)
	je := newExecution(t, repo, "failingJob")

	err = job.Run(context.Background(), je)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Equal(t, 1, je.ExitCode)
	assert.Contains(t, je.Failures, "SinkWriteError: [writer] disk full")
	assert.Zero(t, after.calls)
	assert.Nil(t, je.StepExecution("after"))
}

func TestSimpleJob_PersistsFinalStepStatus(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	failing := &fakeStep{name: "failing", status: model.BatchStatusFailed, err: errors.New("boom")}
	job, err := runner.NewSimpleJob("job", repo, []port.Step{completed("first"), failing})
	require.NoError(t, err)
	je := newExecution(t, repo, "job")

	require.Error(t, job.Run(context.Background(), je))

	stored, err := repo.FindStepExecutionsByJobExecutionID(context.Background(), je.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, model.BatchStatusCompleted, stored[0].Status)
	assert.Equal(t, model.BatchStatusFailed, stored[1].Status)
}

// failingStepUpdates rejects every step execution update.
type failingStepUpdates struct {
	*inmemory.InMemoryJobRepository
}

func (r failingStepUpdates) UpdateStepExecution(context.Context, *model.StepExecution) error {
	return errors.New("db down")
}

func TestSimpleJob_UnpersistedStepFailsJob(t *testing.T) {
	repo := failingStepUpdates{inmemory.NewInMemoryJobRepository()}
	next := completed("next")
	job, err := runner.NewSimpleJob("job", repo, []port.Step{completed("first"), next})
	require.NoError(t, err)
	ji, err := model.NewJobInstance("job", model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(context.Background(), ji))
	je := model.NewJobExecution(ji.ID, "job", ji.Parameters)
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))

	err = job.Run(context.Background(), je)

	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindRepository))
	assert.Equal(t, model.BatchStatusFailed, je.Status)
	assert.Zero(t, next.calls)
}

func TestSimpleJob_StepFailureWithoutError(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	job, err := runner.NewSimpleJob("job", repo, []port.Step{&fakeStep{name: "silent", status: model.BatchStatusFailed}})
	require.NoError(t, err)
	je := newExecution(t, repo, "job")

	err = job.Run(context.Background(), je)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 'silent' ended with status FAILED")
	assert.Equal(t, model.BatchStatusFailed, je.Status)
}

func TestSimpleJob_StoppedStepStopsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	listener := &recordingJobListener{}
	job, err := runner.NewSimpleJob("job", repo,
		[]port.Step{&fakeStep{name: "stopping", status: model.BatchStatusStopped, err: context.Canceled}, completed("next")},
		runner.WithJobListeners(listener))
	require.NoError(t, err)
	je := newExecution(t, repo, "job")

	err = job.Run(context.Background(), je)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Equal(t, model.ExitStatusStopped, je.ExitStatus)
	assert.Equal(t, model.BatchStatusStopped, listener.status)
	assert.Equal(t, 1, listener.after)
}

func TestSimpleJob_CancelledBeforeNextStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	ctx, cancel := context.WithCancel(context.Background())
	first := completed("first")
	first.onRun = func(context.Context) { cancel() }
	second := completed("second")

	job, err := runner.NewSimpleJob("job", repo, []port.Step{first, second})
	require.NoError(t, err)
	je := newExecution(t, repo, "job")

	err = job.Run(ctx, je)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Zero(t, second.calls)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status, "final status is persisted after cancellation")
}

func TestSimpleJob_RestartSkipsCompletedSteps(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	first := completed("first")
	second := &fakeStep{name: "second", status: model.BatchStatusFailed, err: errors.New("boom")}

	job, err := runner.NewSimpleJob("job", repo, []port.Step{first, second})
	require.NoError(t, err)
	je := newExecution(t, repo, "job")
	require.Error(t, job.Run(context.Background(), je))

	restart := model.NewRestartExecution(je)
	require.NoError(t, repo.SaveJobExecution(context.Background(), restart))
	for _, se := range restart.StepExecutions {
		require.NoError(t, repo.SaveStepExecution(context.Background(), se))
	}
	second.status, second.err = model.BatchStatusCompleted, nil

	require.NoError(t, job.Run(context.Background(), restart))

	assert.Equal(t, 1, first.calls, "completed step is not run again")
	assert.Equal(t, 2, second.calls)
	assert.Equal(t, model.BatchStatusCompleted, restart.Status)
	assert.Equal(t, 1, restart.RestartCount)
}

func TestSimpleJob_WithTaskletStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	hello, err := tasklet.NewTaskletStep("helloStep", taskletFunc(func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
		se.ExecutionContext.Put("greeted", true)
		return model.RepeatStatusFinished, nil
	}), repo, tx.NewResourcelessTransactionManager())
	require.NoError(t, err)

	job, err := runner.NewSimpleJob("helloJob", repo, []port.Step{hello})
	require.NoError(t, err)
	je := newExecution(t, repo, "helloJob")

	require.NoError(t, job.Run(context.Background(), je))

	se := je.StepExecution("helloStep")
	require.NotNil(t, se)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, 1, se.CommitCount)
}

func TestSimpleJob_ValidateParameters(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	job, err := runner.NewSimpleJob("job", repo, []port.Step{completed("a")},
		runner.WithRequiredParameters("input"),
		runner.WithParametersValidator(func(p model.JobParameters) error {
			if s, _ := p.GetString("input"); s == "forbidden.csv" {
				return errors.New("forbidden input")
			}
			return nil
		}))
	require.NoError(t, err)

	err = job.ValidateParameters(model.NewJobParameters())
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
	assert.Contains(t, err.Error(), "invalid job parameters")

	params := model.NewJobParameters()
	params.Put("input", "forbidden.csv")
	assert.Error(t, job.ValidateParameters(params))

	params.Put("input", "a.csv")
	assert.NoError(t, job.ValidateParameters(params))
	assert.Nil(t, job.Incrementer())
}

type taskletFunc func(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error)

func (f taskletFunc) Execute(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
	return f(ctx, se)
}
