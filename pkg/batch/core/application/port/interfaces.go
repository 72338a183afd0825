// Package port defines the contracts between the batch engine and the components it runs:
// item readers, processors and writers, tasklets, jobs, steps and listeners.
package port

import (
	"context"
	"errors"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.Read when the source is exhausted.
var ErrNoMoreItems = errors.New("no more items to read")

// ErrFiltered may be returned by ItemProcessor.Process to drop an item whose output type
// has no nil value. Pointer, slice and map outputs can return nil instead.
var ErrFiltered = errors.New("item filtered")

// ItemReader reads items one at a time from a source.
// T is the type of item read.
type ItemReader[T any] interface {
	// Open acquires resources and repositions the reader from ec, the context
	// committed with the last successful chunk (empty on a first run).
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Read returns the next item, or ErrNoMoreItems when the source is exhausted.
	Read(ctx context.Context) (T, error)
	// Close releases resources.
	Close(ctx context.Context) error
	// SetExecutionContext restores the reader position.
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	// GetExecutionContext returns the current reader position.
	// It is saved together with each chunk commit.
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// ItemProcessor transforms an input item into an output item.
type ItemProcessor[I, O any] interface {
	// Process transforms item. A nil output or ErrFiltered drops the item.
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter writes a whole chunk of items inside the chunk transaction.
type ItemWriter[O any] interface {
	Open(ctx context.Context, ec model.ExecutionContext) error
	// Write persists items. Writers that cannot enlist in tx register an
	// OnBeforeCommit synchronization instead.
	Write(ctx context.Context, tx tx.Tx, items []O) error
	Close(ctx context.Context) error
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// Tasklet is the unit of work of a tasklet step.
type Tasklet interface {
	// Execute runs one iteration. CONTINUABLE asks the step to call it again.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error)
}

// Step is a single phase of a job.
type Step interface {
	// StepName returns the logical name of the step, unique within its job.
	StepName() string
	// Execute runs the step and leaves stepExecution in a terminal status.
	// The returned error is the failure cause when the step did not complete.
	Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error
}

// Job is an ordered sequence of steps.
type Job interface {
	// JobName returns the logical name of the job.
	JobName() string
	// Steps returns the steps in execution order.
	Steps() []Step
	// Run executes the steps against jobExecution and leaves it in a terminal status.
	Run(ctx context.Context, jobExecution *model.JobExecution) error
	// ValidateParameters rejects parameters the job cannot run with.
	ValidateParameters(params model.JobParameters) error
	// Incrementer returns the policy used to derive parameters for a fresh run, or nil.
	Incrementer() JobParametersIncrementer
}

// JobParametersIncrementer derives distinguishing parameters for a fresh run of a job.
type JobParametersIncrementer interface {
	// GetNext returns the parameters of the next run, given the parameters of the current one.
	GetNext(params model.JobParameters) model.JobParameters
}

// CompletionListener is notified exactly once per launch, after the job execution
// reached its final status.
type CompletionListener interface {
	OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution)
}

// CompletionListenerFunc adapts a function to CompletionListener.
type CompletionListenerFunc func(ctx context.Context, jobExecution *model.JobExecution)

// OnJobCompletion calls f.
func (f CompletionListenerFunc) OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution) {
	f(ctx, jobExecution)
}

// JobExecutionListener is an interface for handling job execution events.
type JobExecutionListener interface {
	// BeforeJob is called after the execution moved to STARTED.
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called once the execution reached its final status.
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// StepExecutionListener is an interface for handling step execution events.
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkListener is an interface for handling chunk processing events.
type ChunkListener interface {
	// BeforeChunk is called after the chunk transaction began.
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunk is called after the chunk committed.
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
	// AfterChunkError is called after the chunk rolled back.
	AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

// SkipListener is an interface for handling item skip events.
type SkipListener interface {
	OnSkipInRead(ctx context.Context, err error)
	OnSkipInProcess(ctx context.Context, item interface{}, err error)
}

// RetryListener is an interface for handling retry events.
type RetryListener interface {
	// OnRetry is called before attempt number attempt (2 or more) of operation.
	OnRetry(ctx context.Context, operation string, attempt int, err error)
}

type contextKey string

const stepExecutionKey contextKey = "stepExecution"

// WithStepExecution stores a StepExecution in the Context.
func WithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, stepExecutionKey, se)
}

// StepExecutionFromContext retrieves a StepExecution from the Context. Returns nil if not found.
func StepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(stepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
