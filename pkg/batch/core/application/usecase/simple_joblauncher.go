package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const launcherModule = "job_launcher"

var (
	// ErrJobAlreadyComplete is logged when a completed run is launched again and the
	// completed execution is returned unchanged.
	ErrJobAlreadyComplete = errors.New("job instance already completed")
	// ErrJobInstanceAlreadyComplete rejects the launch of a completed run when
	// restart.on_complete is "reject".
	ErrJobInstanceAlreadyComplete = errors.New("job instance already completed; launch rejected")
	// ErrJobExecutionAlreadyRunning rejects a launch while an execution of the same run is active.
	ErrJobExecutionAlreadyRunning = errors.New("job execution already running")
	// ErrJobInstanceStopped rejects resuming a STOPPED run without an explicit restart request.
	ErrJobInstanceStopped = errors.New("job instance stopped; explicit restart required")
	// ErrJobNotRestartable rejects resuming an execution in ABANDONED or UNKNOWN status.
	ErrJobNotRestartable = errors.New("job execution is not restartable")
)

// JobLauncher launches a Job with JobParameters and runs it to completion.
type JobLauncher interface {
	// Launch resolves the run identified by the job name and params, runs it synchronously and
	// returns its final JobExecution. A job that did not complete is reported through the
	// execution status, not the error; the error is reserved for launch problems.
	// Completion listeners are notified only for executions that ran; a completed run returned
	// unchanged is not notified again.
	Launch(ctx context.Context, job port.Job, params model.JobParameters, opts ...LaunchOption) (*model.JobExecution, error)
}

type launchOptions struct {
	freshRun bool
	restart  bool
}

// LaunchOption modifies a single launch.
type LaunchOption func(*launchOptions)

// WithFreshRun derives new parameters through the job's incrementer so a new JobInstance starts.
func WithFreshRun() LaunchOption {
	return func(o *launchOptions) { o.freshRun = true }
}

// WithRestart allows resuming a STOPPED execution.
func WithRestart() LaunchOption {
	return func(o *launchOptions) { o.restart = true }
}

// SimpleJobLauncher implements JobLauncher for local, synchronous execution.
type SimpleJobLauncher struct {
	jobRepository       repository.JobRepository
	txManager           tx.TransactionManager
	restart             config.RestartConfig
	completionListeners []port.CompletionListener
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, restart config.RestartConfig, listeners ...port.CompletionListener) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:       repo,
		txManager:           tx.NewResourcelessTransactionManager(),
		restart:             restart,
		completionListeners: listeners,
	}
}

// SimpleJobLauncherParams defines the dependencies of NewSimpleJobLauncherProvider.
type SimpleJobLauncherParams struct {
	fx.In
	JobRepository       repository.JobRepository
	TxManager           tx.TransactionManager
	Config              *config.Config
	CompletionListeners []port.CompletionListener `group:"completionListeners"`
}

// NewSimpleJobLauncherProvider is an Fx provider for SimpleJobLauncher.
func NewSimpleJobLauncherProvider(p SimpleJobLauncherParams) *SimpleJobLauncher {
	l := NewSimpleJobLauncher(p.JobRepository, p.Config.Batch.Restart, p.CompletionListeners...)
	l.SetTransactionManager(p.TxManager)
	return l
}

// SetTransactionManager sets the manager of the transaction that creates a restart
// execution. It must match the JobRepository.
func (l *SimpleJobLauncher) SetTransactionManager(m tx.TransactionManager) {
	if m != nil {
		l.txManager = m
	}
}

// RegisterCompletionListener adds a listener invoked once per launch.
func (l *SimpleJobLauncher) RegisterCompletionListener(listener port.CompletionListener) {
	l.completionListeners = append(l.completionListeners, listener)
}

// Launch implements JobLauncher. A COMPLETED run returned unchanged does not notify the
// completion listeners.
func (l *SimpleJobLauncher) Launch(ctx context.Context, job port.Job, params model.JobParameters, opts ...LaunchOption) (*model.JobExecution, error) {
	var o launchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if job == nil {
		return nil, exception.NewConfigurationError(launcherModule, "job must not be nil", nil)
	}
	jobName := job.JobName()
	if jobName == "" {
		return nil, exception.NewConfigurationError(launcherModule, "job name must not be empty", nil)
	}
	params = params.Copy()
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params.String())

	if o.freshRun || l.restart.Policy == config.RestartPolicyAlwaysNew {
		next, err := l.nextFreshParameters(ctx, job, params, o.freshRun)
		if err != nil {
			return nil, err
		}
		params = next
	}

	if err := job.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", jobName, err)
		if exception.IsKind(err, exception.KindConfiguration) {
			return nil, err
		}
		return nil, exception.NewConfigurationError(launcherModule, "JobParameters validation error", err)
	}

	jobExecution, runnable, err := l.resolveExecution(ctx, jobName, params, o)
	if err != nil || !runnable {
		return jobExecution, err
	}

	logger.Infof("Running Job '%s' (Execution ID: %s, Job Instance ID: %s).", jobName, jobExecution.ID, jobExecution.JobInstanceID)
	if runErr := job.Run(ctx, jobExecution); runErr != nil {
		logger.Warnf("Job '%s' (Execution ID: %s) did not complete: %v", jobName, jobExecution.ID, runErr)
	}
	if !jobExecution.Status.IsFinished() {
		// A job must leave the execution terminal; anything else is persisted as FAILED.
		jobExecution.MarkAsFailed(exception.NewBatchErrorf(launcherModule, "job returned with non-terminal status %s", jobExecution.Status))
		if err := l.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
			logger.Errorf("Failed to persist JobExecution (ID: %s) as FAILED: %v", jobExecution.ID, err)
		}
	}

	l.notifyCompletion(context.WithoutCancel(ctx), jobExecution)
	return jobExecution, nil
}

// nextFreshParameters applies the incrementer until the parameters identify an unused JobInstance.
func (l *SimpleJobLauncher) nextFreshParameters(ctx context.Context, job port.Job, params model.JobParameters, requested bool) (model.JobParameters, error) {
	incrementer := job.Incrementer()
	if incrementer == nil {
		if requested {
			return params, exception.NewConfigurationError(launcherModule,
				fmt.Sprintf("job '%s' has no JobParametersIncrementer; a fresh run cannot be requested", job.JobName()), nil)
		}
		logger.Debugf("Job '%s' has no JobParametersIncrementer; launching with the given parameters.", job.JobName())
		return params, nil
	}

	next := params
	for {
		candidate := incrementer.GetNext(next)
		if candidate.Equal(next) {
			return params, exception.NewConfigurationError(launcherModule, "JobParametersIncrementer returned unchanged parameters", nil)
		}
		next = candidate
		_, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, job.JobName(), next)
		if errors.Is(err, repository.ErrJobInstanceNotFound) {
			logger.Infof("Generated new JobParameters using JobParametersIncrementer: %s", next.String())
			return next, nil
		}
		if err != nil {
			return params, exception.NewRepositoryError(launcherModule, "failed to search for existing JobInstance", err)
		}
	}
}

// resolveExecution finds or creates the execution to run. runnable is false when an existing
// completed execution is returned as is.
func (l *SimpleJobLauncher) resolveExecution(ctx context.Context, jobName string, params model.JobParameters, o launchOptions) (*model.JobExecution, bool, error) {
	instance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if errors.Is(err, repository.ErrJobInstanceNotFound) {
		return l.startNewInstance(ctx, jobName, params)
	}
	if err != nil {
		return nil, false, exception.NewRepositoryError(launcherModule, "failed to search for existing JobInstance", err)
	}

	latest, err := l.jobRepository.FindLatestJobExecution(ctx, instance.ID)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		logger.Infof("JobInstance (ID: %s) has no executions; creating one.", instance.ID)
		return l.startExecution(ctx, model.NewJobExecution(instance.ID, jobName, instance.Parameters))
	}
	if err != nil {
		return nil, false, exception.NewRepositoryError(launcherModule, "failed to load latest JobExecution", err)
	}

	switch latest.Status {
	case model.BatchStatusCompleted:
		return l.alreadyComplete(latest)
	case model.BatchStatusStarting, model.BatchStatusStarted, model.BatchStatusStopping:
		return nil, false, exception.NewBatchError(launcherModule,
			fmt.Sprintf("JobExecution (ID: %s, Status: %s) is active for JobInstance (ID: %s)", latest.ID, latest.Status, instance.ID),
			ErrJobExecutionAlreadyRunning, false, false)
	case model.BatchStatusFailed:
		return l.resume(ctx, latest)
	case model.BatchStatusStopped:
		if !o.restart && !l.restart.AllowStopped {
			return nil, false, exception.NewBatchError(launcherModule,
				fmt.Sprintf("JobExecution (ID: %s) was stopped; launch with restart to resume it", latest.ID),
				ErrJobInstanceStopped, false, false)
		}
		return l.resume(ctx, latest)
	case model.BatchStatusAbandoned:
		completed, err := l.completedExecution(ctx, instance)
		if err != nil {
			return nil, false, err
		}
		if completed != nil {
			return l.alreadyComplete(completed)
		}
	}
	return nil, false, exception.NewBatchError(launcherModule,
		fmt.Sprintf("JobExecution (ID: %s) has status %s", latest.ID, latest.Status), ErrJobNotRestartable, false, false)
}

func (l *SimpleJobLauncher) alreadyComplete(je *model.JobExecution) (*model.JobExecution, bool, error) {
	if l.restart.OnComplete == config.OnCompleteReject {
		return je, false, exception.NewBatchError(launcherModule,
			fmt.Sprintf("JobInstance (ID: %s) completed in JobExecution (ID: %s)", je.JobInstanceID, je.ID),
			ErrJobInstanceAlreadyComplete, false, false)
	}
	logger.Infof("%v: returning JobExecution (ID: %s) of JobInstance (ID: %s) without re-running it.", ErrJobAlreadyComplete, je.ID, je.JobInstanceID)
	return je, false, nil
}

// completedExecution returns the COMPLETED execution of instance, or nil.
func (l *SimpleJobLauncher) completedExecution(ctx context.Context, instance *model.JobInstance) (*model.JobExecution, error) {
	executions, err := l.jobRepository.FindJobExecutionsByJobInstance(ctx, instance)
	if err != nil {
		return nil, exception.NewRepositoryError(launcherModule, "failed to load JobExecutions", err)
	}
	for _, je := range executions {
		if je.Status == model.BatchStatusCompleted {
			return je, nil
		}
	}
	return nil, nil
}

func (l *SimpleJobLauncher) startNewInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, bool, error) {
	instance, err := model.NewJobInstance(jobName, params)
	if err != nil {
		return nil, false, exception.NewConfigurationError(launcherModule, "invalid JobParameters", err)
	}
	if err := l.jobRepository.SaveJobInstance(ctx, instance); err != nil {
		if errors.Is(err, repository.ErrJobInstanceAlreadyExists) {
			return nil, false, exception.NewBatchError(launcherModule,
				fmt.Sprintf("JobInstance of '%s' was created concurrently", jobName), ErrJobExecutionAlreadyRunning, false, false)
		}
		return nil, false, exception.NewRepositoryError(launcherModule, fmt.Sprintf("failed to save new JobInstance for '%s'", jobName), err)
	}
	logger.Infof("Created new JobInstance (ID: %s, JobName: %s).", instance.ID, jobName)
	return l.startExecution(ctx, model.NewJobExecution(instance.ID, jobName, instance.Parameters))
}

func (l *SimpleJobLauncher) startExecution(ctx context.Context, je *model.JobExecution) (*model.JobExecution, bool, error) {
	if err := l.jobRepository.SaveJobExecution(ctx, je); err != nil {
		return nil, false, exception.NewRepositoryError(launcherModule, "failed to save JobExecution", err)
	}
	logger.Debugf("Saved JobExecution (ID: %s, Status: %s).", je.ID, je.Status)
	return je, true, nil
}

// resume abandons prev and creates its restart execution in one transaction, so a failure
// leaves prev as the latest execution. Step executions that did not complete start from the
// execution context committed with their last chunk.
func (l *SimpleJobLauncher) resume(ctx context.Context, prev *model.JobExecution) (*model.JobExecution, bool, error) {
	t, err := l.txManager.Begin(ctx)
	if err != nil {
		return nil, false, exception.NewRepositoryError(launcherModule, "failed to begin restart transaction", err)
	}
	next, err := l.createRestartExecution(tx.WithTx(ctx, t), prev)
	if err != nil {
		if rbErr := l.txManager.Rollback(t); rbErr != nil {
			logger.Errorf("Failed to roll back restart of JobExecution (ID: %s): %v", prev.ID, rbErr)
		}
		return nil, false, err
	}
	if err := l.txManager.Commit(t); err != nil {
		return nil, false, exception.NewRepositoryError(launcherModule, fmt.Sprintf("failed to commit restart of JobExecution (ID: %s)", prev.ID), err)
	}
	logger.Infof("Created restart JobExecution (ID: %s). Restart Count: %d", next.ID, next.RestartCount)
	return next, true, nil
}

func (l *SimpleJobLauncher) createRestartExecution(ctx context.Context, prev *model.JobExecution) (*model.JobExecution, error) {
	prevStatus := prev.Status
	prev.MarkAsAbandoned()
	if err := l.jobRepository.UpdateJobExecution(ctx, prev); err != nil {
		return nil, exception.NewRepositoryError(launcherModule, fmt.Sprintf("failed to abandon JobExecution (ID: %s)", prev.ID), err)
	}
	logger.Infof("JobExecution (ID: %s) %s -> ABANDONED.", prev.ID, prevStatus)

	next := model.NewRestartExecution(prev)
	if _, _, err := l.startExecution(ctx, next); err != nil {
		return nil, err
	}
	for _, se := range next.StepExecutions {
		if se.Status != model.BatchStatusCompleted {
			if err := l.restoreCheckpoint(ctx, prev.StepExecution(se.StepName), se); err != nil {
				return nil, err
			}
		}
		if err := l.jobRepository.SaveStepExecution(ctx, se); err != nil {
			return nil, exception.NewRepositoryError(launcherModule, fmt.Sprintf("failed to save StepExecution of '%s'", se.StepName), err)
		}
	}
	return next, nil
}

func (l *SimpleJobLauncher) restoreCheckpoint(ctx context.Context, prev, next *model.StepExecution) error {
	if prev == nil {
		return nil
	}
	checkpoint, err := l.jobRepository.FindCheckpointData(ctx, prev.ID)
	if errors.Is(err, repository.ErrCheckpointDataNotFound) {
		return nil
	}
	if err != nil {
		return exception.NewRepositoryError(launcherModule, fmt.Sprintf("failed to load checkpoint of '%s'", prev.StepName), err)
	}
	next.ExecutionContext = checkpoint.ExecutionContext.Copy()
	logger.Debugf("Step '%s' resumes from the checkpoint of StepExecution (ID: %s).", next.StepName, prev.ID)
	return nil
}

func (l *SimpleJobLauncher) notifyCompletion(ctx context.Context, je *model.JobExecution) {
	for _, listener := range l.completionListeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("CompletionListener panicked for JobExecution (ID: %s): %v", je.ID, r)
				}
			}()
			listener.OnJobCompletion(ctx, je)
		}()
	}
}
