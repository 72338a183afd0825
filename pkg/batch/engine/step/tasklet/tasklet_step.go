// Package tasklet implements the tasklet step: a single unit of work invoked until it reports
// FINISHED, each invocation in its own transaction.
package tasklet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// DefaultMaxIterations bounds the CONTINUABLE iterations of a tasklet step.
const DefaultMaxIterations = 1000

// TaskletStep is a port.Step that runs a port.Tasklet.
type TaskletStep struct {
	name          string
	tasklet       port.Tasklet
	jobRepository repository.JobRepository
	txManager     tx.TransactionManager
	txOptions     *sql.TxOptions
	maxIterations int

	stepListeners  []port.StepExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Step = (*TaskletStep)(nil)

// Option configures a TaskletStep.
type Option func(*TaskletStep)

// WithMaxIterations sets the iteration guard. Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(s *TaskletStep) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithIsolationLevel sets the isolation level of each iteration's transaction,
// e.g. "READ_COMMITTED" or "SERIALIZABLE".
func WithIsolationLevel(level string) Option {
	return func(s *TaskletStep) {
		s.txOptions = &sql.TxOptions{Isolation: parseIsolationLevel(level)}
	}
}

// WithStepListeners registers StepExecutionListeners.
func WithStepListeners(listeners ...port.StepExecutionListener) Option {
	return func(s *TaskletStep) { s.stepListeners = append(s.stepListeners, listeners...) }
}

// WithMetricRecorder sets the MetricRecorder. Nil keeps the no-op recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) Option {
	return func(s *TaskletStep) {
		if recorder != nil {
			s.metricRecorder = recorder
		}
	}
}

// WithTracer sets the Tracer. Nil keeps the no-op tracer.
func WithTracer(tracer metrics.Tracer) Option {
	return func(s *TaskletStep) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewTaskletStep creates a TaskletStep.
func NewTaskletStep(name string, tasklet port.Tasklet, jobRepository repository.JobRepository, txManager tx.TransactionManager, opts ...Option) (*TaskletStep, error) {
	switch {
	case name == "":
		return nil, exception.NewConfigurationError("TaskletStep", "step name must not be empty", nil)
	case tasklet == nil:
		return nil, exception.NewConfigurationError(name, "tasklet is required", nil)
	case jobRepository == nil || txManager == nil:
		return nil, exception.NewConfigurationError(name, "job repository and transaction manager are required", nil)
	}
	s := &TaskletStep{
		name:           name,
		tasklet:        tasklet,
		jobRepository:  jobRepository,
		txManager:      txManager,
		maxIterations:  DefaultMaxIterations,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// parseIsolationLevel converts a configured isolation level name to sql.IsolationLevel.
func parseIsolationLevel(level string) sql.IsolationLevel {
	switch strings.ToUpper(level) {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "WRITE_COMMITTED":
		return sql.LevelWriteCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.name
}

// Execute invokes the tasklet until it returns FINISHED. Every iteration commits the step
// execution context together with the tasklet's own transactional work.
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("TaskletStep '%s' executing.", s.name)
	ctx = port.WithStepExecution(ctx, stepExecution)

	if err := stepExecution.MarkAsStarted(); err != nil {
		return s.finish(ctx, stepExecution, exception.NewBatchError(s.name, "step execution cannot be started", err, false, false))
	}
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return s.finish(ctx, stepExecution, exception.NewRepositoryError(s.name, "failed to persist STARTED step execution", err))
	}
	s.notifyBeforeStep(ctx, stepExecution)

	var stepErr error
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		if iteration > s.maxIterations {
			stepErr = exception.NewBatchError(s.name, fmt.Sprintf("tasklet did not finish within %d iterations", s.maxIterations), nil, false, false)
			break
		}
		status, err := s.iterate(ctx, stepExecution)
		if err != nil {
			stepErr = err
			break
		}
		if status == model.RepeatStatusFinished {
			break
		}
		if status != model.RepeatStatusContinuable {
			stepErr = exception.NewBatchError(s.name, fmt.Sprintf("tasklet returned unknown repeat status %q", status), nil, false, false)
			break
		}
		logger.Debugf("TaskletStep '%s': iteration %d returned CONTINUABLE.", s.name, iteration)
	}
	return s.finish(ctx, stepExecution, stepErr)
}

// iterate runs one tasklet invocation in its own transaction.
func (s *TaskletStep) iterate(ctx context.Context, se *model.StepExecution) (model.RepeatStatus, error) {
	ec := se.ExecutionContext.Copy()
	version, commits := se.Version, se.CommitCount

	t, err := s.txManager.Begin(ctx, s.txOptions)
	if err != nil {
		return "", exception.NewRepositoryError(s.name, "failed to begin tasklet transaction", err)
	}
	txCtx := tx.WithTx(ctx, t)

	status, err := s.tasklet.Execute(txCtx, se)
	if err == nil {
		se.CommitCount++
		se.LastUpdated = time.Now()
		if err = s.jobRepository.SaveCheckpointData(txCtx, model.NewCheckpointData(se)); err != nil {
			err = exception.NewRepositoryError(s.name, "failed to save checkpoint", err)
		} else if err = s.jobRepository.UpdateStepExecution(txCtx, se); err != nil {
			err = exception.NewRepositoryError(s.name, "failed to save step progress", err)
		} else if err = s.txManager.Commit(t); err != nil {
			err = exception.NewRepositoryError(s.name, "failed to commit tasklet transaction", err)
		}
	}
	if err != nil {
		if rbErr := s.txManager.Rollback(t); rbErr != nil {
			logger.Errorf("TaskletStep '%s': rollback failed: %v", s.name, rbErr)
		}
		se.ExecutionContext = ec
		se.Version, se.CommitCount = version, commits
		se.RollbackCount++
		s.metricRecorder.RecordChunkRollback(ctx, s.name)
		return "", err
	}
	s.metricRecorder.RecordChunkCommit(ctx, s.name, 0)
	return status, nil
}

// finish moves the step execution to its terminal status and persists it.
func (s *TaskletStep) finish(ctx context.Context, se *model.StepExecution, stepErr error) error {
	persistCtx := context.WithoutCancel(ctx)
	switch {
	case stepErr == nil:
		if err := se.MarkAsCompleted(); err != nil {
			se.MarkAsFailed(err)
			stepErr = err
		}
	case ctx.Err() != nil || errors.Is(stepErr, context.Canceled):
		logger.Warnf("TaskletStep '%s' stopped: %v", s.name, stepErr)
		if err := se.MarkAsStopped(); err != nil {
			se.MarkAsFailed(stepErr)
		}
	default:
		logger.Errorf("TaskletStep '%s' failed: %v", s.name, stepErr)
		s.tracer.RecordError(ctx, s.name, stepErr)
		se.MarkAsFailed(stepErr)
	}

	s.notifyAfterStep(persistCtx, se)
	if err := s.jobRepository.UpdateStepExecution(persistCtx, se); err != nil {
		logger.Errorf("TaskletStep '%s': failed to persist final step execution: %v", s.name, err)
		if stepErr == nil {
			stepErr = exception.NewRepositoryError(s.name, "failed to persist final step execution", err)
			se.MarkAsFailed(stepErr)
		}
	}
	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s", s.name, se.ExitStatus)
	return stepErr
}

func (s *TaskletStep) notifyBeforeStep(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, se)
	}
}

func (s *TaskletStep) notifyAfterStep(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.stepListeners {
		l.AfterStep(ctx, se)
	}
}
