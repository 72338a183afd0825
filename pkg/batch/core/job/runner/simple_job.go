// Package runner implements the job: an ordered sequence of steps run against one job execution.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// ParametersValidator rejects job parameters a job cannot run with.
type ParametersValidator func(params model.JobParameters) error

// SimpleJob is a port.Job that runs its steps strictly in declared order and stops at the
// first step that does not complete.
type SimpleJob struct {
	name          string
	steps         []port.Step
	jobRepository repository.JobRepository
	incrementer   port.JobParametersIncrementer
	validators    []ParametersValidator

	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Job = (*SimpleJob)(nil)

// Option configures a SimpleJob.
type Option func(*SimpleJob)

// WithIncrementer sets the policy used to derive parameters for a fresh run.
func WithIncrementer(incrementer port.JobParametersIncrementer) Option {
	return func(j *SimpleJob) { j.incrementer = incrementer }
}

// WithParametersValidator adds a parameter check run before every launch.
func WithParametersValidator(v ParametersValidator) Option {
	return func(j *SimpleJob) { j.validators = append(j.validators, v) }
}

// WithRequiredParameters rejects parameters missing any of keys.
func WithRequiredParameters(keys ...string) Option {
	return WithParametersValidator(func(params model.JobParameters) error {
		for _, key := range keys {
			if params.Get(key) == nil {
				return fmt.Errorf("required parameter '%s' is missing", key)
			}
		}
		return nil
	})
}

// WithJobListeners registers JobExecutionListeners.
func WithJobListeners(listeners ...port.JobExecutionListener) Option {
	return func(j *SimpleJob) { j.jobListeners = append(j.jobListeners, listeners...) }
}

// WithMetricRecorder sets the MetricRecorder. Nil keeps the no-op recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) Option {
	return func(j *SimpleJob) {
		if recorder != nil {
			j.metricRecorder = recorder
		}
	}
}

// WithTracer sets the Tracer. Nil keeps the no-op tracer.
func WithTracer(tracer metrics.Tracer) Option {
	return func(j *SimpleJob) {
		if tracer != nil {
			j.tracer = tracer
		}
	}
}

// NewSimpleJob creates a SimpleJob. Step names must be unique within the job.
func NewSimpleJob(name string, jobRepository repository.JobRepository, steps []port.Step, opts ...Option) (*SimpleJob, error) {
	if name == "" {
		return nil, exception.NewConfigurationError("SimpleJob", "job name must not be empty", nil)
	}
	if jobRepository == nil {
		return nil, exception.NewConfigurationError(name, "job repository is required", nil)
	}
	if len(steps) == 0 {
		return nil, exception.NewConfigurationError(name, "a job needs at least one step", nil)
	}
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if s == nil {
			return nil, exception.NewConfigurationError(name, "step must not be nil", nil)
		}
		if _, dup := seen[s.StepName()]; dup {
			return nil, exception.NewConfigurationError(name, fmt.Sprintf("duplicate step name '%s'", s.StepName()), nil)
		}
		seen[s.StepName()] = struct{}{}
	}

	j := &SimpleJob{
		name:           name,
		steps:          steps,
		jobRepository:  jobRepository,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// JobName returns the job name.
func (j *SimpleJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SimpleJob) Steps() []port.Step {
	return j.steps
}

// Incrementer returns the fresh-run policy, or nil.
func (j *SimpleJob) Incrementer() port.JobParametersIncrementer {
	return j.incrementer
}

// ValidateParameters runs the configured validators.
func (j *SimpleJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': validating parameters %s", j.name, params.String())
	for _, v := range j.validators {
		if err := v(params); err != nil {
			return exception.NewConfigurationError(j.name, "invalid job parameters", err)
		}
	}
	return nil
}

// Run executes the steps against jobExecution and persists every status transition.
// It returns the failure cause when the job did not complete.
func (j *SimpleJob) Run(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("Starting Job '%s' (Execution ID: %s, restart %d).", j.name, jobExecution.ID, jobExecution.RestartCount)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	if jobExecution.Status == model.BatchStatusStarting {
		if err := jobExecution.MarkAsStarted(); err != nil {
			return j.finish(ctx, jobExecution, false, exception.NewBatchError(j.name, "job execution cannot be started", err, false, false))
		}
		if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
			return j.finish(ctx, jobExecution, false, exception.NewRepositoryError(j.name, "failed to persist STARTED job execution", err))
		}
	}
	j.metricRecorder.RecordJobStart(ctx, jobExecution)
	j.notifyBeforeJob(ctx, jobExecution)

	stopped, err := j.runSteps(ctx, jobExecution)
	return j.finish(ctx, jobExecution, stopped, err)
}

// runSteps runs the steps in order. It reports stopped when a step ended STOPPED or ctx was cancelled.
func (j *SimpleJob) runSteps(ctx context.Context, je *model.JobExecution) (bool, error) {
	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		name := step.StepName()

		se := je.StepExecution(name)
		switch {
		case se == nil:
			se = model.NewStepExecution(je, name)
			je.AddStepExecution(se)
			if err := j.jobRepository.SaveStepExecution(ctx, se); err != nil {
				return false, exception.NewRepositoryError(j.name, fmt.Sprintf("failed to save step execution of '%s'", name), err)
			}
		case se.Status == model.BatchStatusCompleted:
			logger.Infof("Job '%s': step '%s' already completed in a previous execution, skipping.", j.name, name)
			continue
		case se.Status != model.BatchStatusStarting:
			return false, exception.NewBatchError(j.name, fmt.Sprintf("step '%s' was already run in this execution (status %s)", name, se.Status), nil, false, false)
		default:
			logger.Infof("Job '%s': resuming step '%s' (StepExecution ID: %s).", j.name, name, se.ID)
		}

		je.CurrentStepName = name
		if err := j.jobRepository.UpdateJobExecution(ctx, je); err != nil {
			return false, exception.NewRepositoryError(j.name, "failed to persist current step", err)
		}

		stepErr := j.executeStep(ctx, step, je, se)
		if err := j.persistStepResult(ctx, se); err != nil {
			if stepErr != nil {
				logger.Errorf("Job '%s': step '%s' failed: %v", j.name, name, stepErr)
			}
			return false, err
		}
		switch se.Status {
		case model.BatchStatusCompleted:
			logger.Infof("Job '%s': step '%s' completed. %s", j.name, name, se.DebugString())
		case model.BatchStatusStopped:
			if stepErr == nil {
				stepErr = context.Canceled
			}
			return true, stepErr
		default:
			if stepErr == nil {
				stepErr = exception.NewBatchError(j.name, fmt.Sprintf("step '%s' ended with status %s", name, se.Status), nil, false, false)
			}
			return false, stepErr
		}
	}
	return false, nil
}

func (j *SimpleJob) executeStep(ctx context.Context, step port.Step, je *model.JobExecution, se *model.StepExecution) error {
	stepCtx, finishSpan := j.tracer.StartStepSpan(ctx, se)
	defer finishSpan()

	j.metricRecorder.RecordStepStart(stepCtx, se)
	err := step.Execute(stepCtx, je, se)
	j.metricRecorder.RecordStepEnd(stepCtx, se)
	if err != nil {
		j.tracer.RecordError(stepCtx, se.StepName, err)
	}
	return err
}

// persistStepResult saves se when the stored copy does not carry its final status yet.
func (j *SimpleJob) persistStepResult(ctx context.Context, se *model.StepExecution) error {
	persistCtx := context.WithoutCancel(ctx)
	stored, err := j.jobRepository.FindStepExecutionByID(persistCtx, se.ID)
	if err == nil && stored.Status == se.Status && stored.Version == se.Version {
		return nil
	}
	if err := j.jobRepository.UpdateStepExecution(persistCtx, se); err != nil {
		return exception.NewRepositoryError(j.name, fmt.Sprintf("failed to persist step execution of '%s' (status %s)", se.StepName, se.Status), err)
	}
	return nil
}

// finish moves the job execution to its terminal status and persists it.
func (j *SimpleJob) finish(ctx context.Context, je *model.JobExecution, stopped bool, runErr error) error {
	persistCtx := context.WithoutCancel(ctx)
	switch {
	case runErr == nil:
		if err := je.MarkAsCompleted(); err != nil {
			je.MarkAsFailed(err)
			runErr = err
		}
	case stopped || errors.Is(runErr, context.Canceled):
		logger.Warnf("Job '%s' stopped: %v", j.name, runErr)
		je.AddFailureException(runErr)
		if err := je.MarkAsStopped(); err != nil {
			je.MarkAsFailed(runErr)
		}
	default:
		logger.Errorf("Job '%s' failed: %v", j.name, runErr)
		j.tracer.RecordError(ctx, j.name, runErr)
		je.MarkAsFailed(runErr)
	}

	if err := j.jobRepository.UpdateJobExecution(persistCtx, je); err != nil {
		logger.Errorf("Job '%s': failed to persist final job execution (ID: %s): %v", j.name, je.ID, err)
		if runErr == nil {
			runErr = exception.NewRepositoryError(j.name, "failed to persist final job execution", err)
			je.MarkAsFailed(runErr)
		}
	}
	j.notifyAfterJob(persistCtx, je)
	j.metricRecorder.RecordJobEnd(persistCtx, je)

	logger.Infof("Job '%s' (Execution ID: %s) finished. Status: %s, ExitStatus: %s", j.name, je.ID, je.Status, je.ExitStatus)
	for _, se := range je.StepExecutions {
		logger.Debugf("  %s", se.DebugString())
	}
	return runErr
}

func (j *SimpleJob) notifyBeforeJob(ctx context.Context, je *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, je)
	}
}

func (j *SimpleJob) notifyAfterJob(ctx context.Context, je *model.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, je)
	}
}
