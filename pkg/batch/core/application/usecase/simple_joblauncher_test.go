package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/job/runner"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/support/incrementer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/item"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/test"
)

// statusStep ends its step execution with the next status of its script.
type statusStep struct {
	name   string
	script []model.BatchStatus
	calls  int
}

func (s *statusStep) StepName() string { return s.name }

func (s *statusStep) Execute(ctx context.Context, je *model.JobExecution, se *model.StepExecution) error {
	status := model.BatchStatusCompleted
	if s.calls < len(s.script) {
		status = s.script[s.calls]
	}
	s.calls++
	_ = se.MarkAsStarted()
	switch status {
	case model.BatchStatusCompleted:
		return se.MarkAsCompleted()
	case model.BatchStatusStopped:
		_ = se.MarkAsStopped()
		return context.Canceled
	default:
		err := errors.New("step failed")
		se.MarkAsFailed(err)
		return err
	}
}

func defaultRestart() config.RestartConfig {
	return config.NewConfig().Batch.Restart
}

func newJob(t *testing.T, repo *inmemory.InMemoryJobRepository, name string, steps []port.Step, opts ...runner.Option) *runner.SimpleJob {
	t.Helper()
	job, err := runner.NewSimpleJob(name, repo, steps, opts...)
	require.NoError(t, err)
	return job
}

func params(kv ...interface{}) model.JobParameters {
	p := model.NewJobParameters()
	for i := 0; i+1 < len(kv); i += 2 {
		p.Put(kv[i].(string), kv[i+1])
	}
	return p
}

func TestLaunch_NewRunCompletes(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}, &statusStep{name: "b"}})

	je, err := launcher.Launch(ctx, job, params("input", "a.csv"))

	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	assert.Equal(t, 1, listener.Count())
	assert.Same(t, je, listener.Received[0])

	stored, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Len(t, stored.StepExecutions, 2)
	count, err := repo.GetJobInstanceCount(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLaunch_CompletedRunIsReturnedUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	step := &statusStep{name: "a"}
	job := newJob(t, repo, "job", []port.Step{step})

	first, err := launcher.Launch(ctx, job, params("input", "a.csv"))
	require.NoError(t, err)
	second, err := launcher.Launch(ctx, job, params("input", "a.csv"))

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, 1, step.calls, "a completed run is not executed again")
	assert.Equal(t, 1, listener.Count(), "the listener is not invoked for the returned execution")
}

func TestLaunch_CompletedRunRejected(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	restart := defaultRestart()
	restart.OnComplete = config.OnCompleteReject
	launcher := usecase.NewSimpleJobLauncher(repo, restart)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}})

	_, err := launcher.Launch(ctx, job, params())
	require.NoError(t, err)
	je, err := launcher.Launch(ctx, job, params())

	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrJobInstanceAlreadyComplete)
	assert.Equal(t, model.BatchStatusCompleted, je.Status)
}

func TestLaunch_ResumesFailedRun(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	first := &statusStep{name: "first"}
	second := &statusStep{name: "second", script: []model.BatchStatus{model.BatchStatusFailed}}
	job := newJob(t, repo, "job", []port.Step{first, second})

	failed, err := launcher.Launch(ctx, job, params("input", "a.csv"))
	require.NoError(t, err, "a failed job is reported through its status")
	assert.Equal(t, model.BatchStatusFailed, failed.Status)
	assert.Equal(t, []string{"step failed"}, []string(failed.Failures))

	resumed, err := launcher.Launch(ctx, job, params("input", "a.csv"))
	require.NoError(t, err)

	assert.NotEqual(t, failed.ID, resumed.ID)
	assert.Equal(t, failed.JobInstanceID, resumed.JobInstanceID)
	assert.Equal(t, 1, resumed.RestartCount)
	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	assert.Equal(t, 1, first.calls, "completed steps are not re-run")
	assert.Equal(t, 2, second.calls)
	assert.Equal(t, 2, listener.Count(), "one notification per launch")

	prev, err := repo.FindJobExecutionByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusAbandoned, prev.Status)

	instance, err := repo.FindJobInstanceByID(ctx, failed.JobInstanceID)
	require.NoError(t, err)
	executions, err := repo.FindJobExecutionsByJobInstance(ctx, instance)
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

// flakyStepSaves fails the next SaveStepExecution once failNext is set.
type flakyStepSaves struct {
	*inmemory.InMemoryJobRepository
	failNext bool
}

func (r *flakyStepSaves) SaveStepExecution(ctx context.Context, se *model.StepExecution) error {
	if r.failNext {
		r.failNext = false
		return errors.New("transient db error")
	}
	return r.InMemoryJobRepository.SaveStepExecution(ctx, se)
}

func TestLaunch_FailedRestartSetupKeepsRunResumable(t *testing.T) {
	ctx := context.Background()
	inner := inmemory.NewInMemoryJobRepository()
	repo := &flakyStepSaves{InMemoryJobRepository: inner}
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	first := &statusStep{name: "first"}
	second := &statusStep{name: "second", script: []model.BatchStatus{model.BatchStatusFailed}}
	job := newJob(t, inner, "job", []port.Step{first, second})

	failed, err := launcher.Launch(ctx, job, params("input", "a.csv"))
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusFailed, failed.Status)

	repo.failNext = true
	_, err = launcher.Launch(ctx, job, params("input", "a.csv"))
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindRepository))
	assert.Equal(t, 1, listener.Count())

	prev, err := inner.FindJobExecutionByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, prev.Status, "the failed run stays the latest execution")
	latest, err := inner.FindLatestJobExecution(ctx, failed.JobInstanceID)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, latest.ID)

	resumed, err := launcher.Launch(ctx, job, params("input", "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	assert.Equal(t, 1, resumed.RestartCount)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 2, second.calls)
	assert.Equal(t, 2, listener.Count())
}

func TestLaunch_StoppedRun(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		allowStopped bool
		opts         []usecase.LaunchOption
		wantErr      error
	}{
		{name: "requires explicit restart", wantErr: usecase.ErrJobInstanceStopped},
		{name: "restart option", opts: []usecase.LaunchOption{usecase.WithRestart()}},
		{name: "allow_stopped", allowStopped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := inmemory.NewInMemoryJobRepository()
			restart := defaultRestart()
			restart.AllowStopped = tt.allowStopped
			launcher := usecase.NewSimpleJobLauncher(repo, restart)
			job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a", script: []model.BatchStatus{model.BatchStatusStopped}}})

			stopped, err := launcher.Launch(ctx, job, params())
			require.NoError(t, err)
			require.Equal(t, model.BatchStatusStopped, stopped.Status)

			resumed, err := launcher.Launch(ctx, job, params(), tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
			assert.Equal(t, 1, resumed.RestartCount)
		})
	}
}

func TestLaunch_RejectsActiveExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}})
	test.SaveTestExecution(t, repo, "job", params("input", "a.csv"))

	_, err := launcher.Launch(ctx, job, params("input", "a.csv"))

	assert.ErrorIs(t, err, usecase.ErrJobExecutionAlreadyRunning)
	assert.Zero(t, listener.Count())
}

func TestLaunch_FreshRunAppliesIncrementer(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}}, runner.WithIncrementer(incrementer.NewRunIDIncrementer("")))

	first, err := launcher.Launch(ctx, job, params("input", "a.csv"), usecase.WithFreshRun())
	require.NoError(t, err)
	second, err := launcher.Launch(ctx, job, params("input", "a.csv"), usecase.WithFreshRun())
	require.NoError(t, err)

	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	id, _ := first.Parameters.GetInt64(incrementer.DefaultRunIDKey)
	assert.Equal(t, int64(1), id)
	id, _ = second.Parameters.GetInt64(incrementer.DefaultRunIDKey)
	assert.Equal(t, int64(2), id, "the incrementer skips parameters that already identify an instance")
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
}

func TestLaunch_AlwaysNewPolicy(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	restart := defaultRestart()
	restart.Policy = config.RestartPolicyAlwaysNew
	launcher := usecase.NewSimpleJobLauncher(repo, restart)
	withInc := newJob(t, repo, "withInc", []port.Step{&statusStep{name: "a"}}, runner.WithIncrementer(incrementer.NewRunIDIncrementer("")))
	withoutInc := newJob(t, repo, "withoutInc", []port.Step{&statusStep{name: "a"}})

	for i := 0; i < 2; i++ {
		_, err := launcher.Launch(ctx, withInc, params())
		require.NoError(t, err)
		_, err = launcher.Launch(ctx, withoutInc, params())
		require.NoError(t, err)
	}

	count, _ := repo.GetJobInstanceCount(ctx, "withInc")
	assert.Equal(t, 2, count)
	count, _ = repo.GetJobInstanceCount(ctx, "withoutInc")
	assert.Equal(t, 1, count, "jobs without an incrementer keep their identity")
}

func TestLaunch_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	listener := &test.RecordingCompletionListener{}
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), listener)
	job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a"}}, runner.WithRequiredParameters("input"))

	_, err := launcher.Launch(ctx, nil, params())
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))

	_, err = launcher.Launch(ctx, job, params())
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))

	_, err = launcher.Launch(ctx, job, params("input", "a.csv"), usecase.WithFreshRun())
	assert.True(t, exception.IsKind(err, exception.KindConfiguration), "fresh run without incrementer")

	assert.Zero(t, listener.Count())
	count, _ := repo.GetJobInstanceCount(ctx, "job")
	assert.Zero(t, count, "no execution is created")
}

func TestLaunch_ListenerExactlyOnce(t *testing.T) {
	tests := []struct {
		status model.BatchStatus
	}{
		{model.BatchStatusCompleted},
		{model.BatchStatusFailed},
		{model.BatchStatusStopped},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			repo := inmemory.NewInMemoryJobRepository()
			listener := &test.RecordingCompletionListener{}
			launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
			launcher.RegisterCompletionListener(listener)
			job := newJob(t, repo, "job", []port.Step{&statusStep{name: "a", script: []model.BatchStatus{tt.status}}})

			je, err := launcher.Launch(context.Background(), job, params())

			require.NoError(t, err)
			assert.Equal(t, tt.status, je.Status)
			require.Equal(t, 1, listener.Count())
			assert.Equal(t, tt.status, listener.Received[0].Status)
		})
	}
}

// finalUpdateFailingRepository fails every update that persists a terminal job status.
type finalUpdateFailingRepository struct {
	*inmemory.InMemoryJobRepository
}

func (r *finalUpdateFailingRepository) UpdateJobExecution(ctx context.Context, je *model.JobExecution) error {
	if je.Status.IsFinished() {
		return errors.New("database is gone")
	}
	return r.InMemoryJobRepository.UpdateJobExecution(ctx, je)
}

func TestLaunch_ListenerInvokedWhenFinalUpdateFails(t *testing.T) {
	repo := &finalUpdateFailingRepository{InMemoryJobRepository: inmemory.NewInMemoryJobRepository()}
	var notified []model.BatchStatus
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart(), port.CompletionListenerFunc(func(ctx context.Context, je *model.JobExecution) {
		notified = append(notified, je.Status)
	}))
	job, err := runner.NewSimpleJob("job", repo, []port.Step{&statusStep{name: "a"}})
	require.NoError(t, err)

	je, err := launcher.Launch(context.Background(), job, params())

	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, je.Status, "a job whose final status cannot be persisted fails")
	assert.Equal(t, []model.BatchStatus{model.BatchStatusFailed}, notified)
}

func TestLaunch_ChunkStepRestartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	launcher := usecase.NewSimpleJobLauncher(repo, defaultRestart())
	writer := test.NewRecordingWriter[int]()
	writer.FailOn = func(call int, _ []int) error {
		if call == 3 {
			return errors.New("disk full")
		}
		return nil
	}
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	newChunkJob := func() *runner.SimpleJob {
		step, err := item.NewChunkStep[int, int]("chunkStep", test.NewSliceReader(items...),
			test.FuncProcessor[int, int](func(ctx context.Context, i int) (int, error) { return i, nil }),
			writer, 3, repo, tx.NewResourcelessTransactionManager())
		require.NoError(t, err)
		return newJob(t, repo, "chunkJob", []port.Step{step})
	}

	failed, err := launcher.Launch(ctx, newChunkJob(), params("input", "numbers"))
	require.NoError(t, err)
	require.Equal(t, model.BatchStatusFailed, failed.Status)
	assert.Equal(t, items[:6], writer.Items())

	writer.FailOn = nil
	resumed, err := launcher.Launch(ctx, newChunkJob(), params("input", "numbers"))
	require.NoError(t, err)

	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	assert.Equal(t, items, writer.Items(), "final sink equals an uninterrupted run")
	se := resumed.StepExecution("chunkStep")
	require.NotNil(t, se)
	assert.Equal(t, 4, se.WriteCount)
}
