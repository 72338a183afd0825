package metrics

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

// Tracer creates spans for job and step executions.
type Tracer interface {
	// StartJobSpan starts a span for a JobExecution.
	// It returns a context carrying the span and a function that ends it.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	// StartStepSpan starts a child span for a StepExecution.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	// RecordError attaches err to the span in ctx.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds a named event to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
