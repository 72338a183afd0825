// Package listener aggregates the listener modules and provides the completion signal the
// command line uses to derive its exit code.
package listener

import (
	"context"
	"sync"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// JobCompletionSignaler is a port.CompletionListener that keeps the first finished execution
// and closes Done. Later completions are ignored.
type JobCompletionSignaler struct {
	once      sync.Once
	done      chan struct{}
	execution *model.JobExecution
}

var _ port.CompletionListener = (*JobCompletionSignaler)(nil)

// NewJobCompletionSignaler creates a JobCompletionSignaler.
func NewJobCompletionSignaler() *JobCompletionSignaler {
	return &JobCompletionSignaler{done: make(chan struct{})}
}

// OnJobCompletion implements port.CompletionListener.
func (s *JobCompletionSignaler) OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution) {
	s.once.Do(func() {
		logger.Debugf("JobCompletionSignaler: job '%s' (ID: %s) completed.", jobExecution.JobName, jobExecution.ID)
		s.execution = jobExecution
		close(s.done)
	})
}

// Done is closed once a job execution has finished.
func (s *JobCompletionSignaler) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until a job execution has finished or ctx is done, and returns the execution.
func (s *JobCompletionSignaler) Wait(ctx context.Context) (*model.JobExecution, error) {
	select {
	case <-s.done:
		return s.execution, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExitCode returns the exit code of the finished execution, or 1 when no execution has
// finished.
func (s *JobCompletionSignaler) ExitCode() int {
	select {
	case <-s.done:
		return s.execution.ExitCode
	default:
		return model.ExitStatusFailed.ExitCode()
	}
}
