// Package metrics defines the observability ports of the engine: a MetricRecorder for
// counters and durations and a Tracer for job and step spans.
package metrics

import (
	"context"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

// MetricRecorder records metrics of batch execution.
// Implementations must be safe for concurrent use and must never fail the batch.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the final status and duration of a JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	// RecordStepEnd records the final status and duration of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)
	// RecordItemRead records a successful read.
	RecordItemRead(ctx context.Context, stepName string)
	// RecordItemProcess records a successful transform.
	RecordItemProcess(ctx context.Context, stepName string)
	// RecordItemWrite records count items flushed to the sink.
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordItemSkip records a skipped item; reason is the error kind.
	RecordItemSkip(ctx context.Context, stepName string, reason string)
	// RecordItemRetry records a retried operation; reason is the error kind.
	RecordItemRetry(ctx context.Context, stepName string, reason string)
	// RecordChunkCommit records a committed chunk of count items.
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	// RecordChunkRollback records a rolled back chunk.
	RecordChunkRollback(ctx context.Context, stepName string)
	// RecordDuration records an arbitrary timed operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
