package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// OtelTracer implements metrics.Tracer with OpenTelemetry spans. The step span is a child of
// the job span, and each span ends with the execution's final status.
type OtelTracer struct {
	tracer trace.Tracer
}

var _ metrics.Tracer = (*OtelTracer)(nil)

// NewOtelTracer creates an OtelTracer on a tracer of provider.
func NewOtelTracer(provider trace.TracerProvider) *OtelTracer {
	return &OtelTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartJobSpan implements metrics.Tracer.
func (t *OtelTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+execution.JobName,
		trace.WithAttributes(
			attribute.String("batch.job.name", execution.JobName),
			attribute.String("batch.job.execution_id", execution.ID),
			attribute.String("batch.job.instance_id", execution.JobInstanceID),
			attribute.Int("batch.job.restart_count", execution.RestartCount),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", execution.Status.String()),
			attribute.String("batch.exit_status", execution.ExitStatus.String()),
		)
		endSpan(span, execution.Status, execution.Failures)
	}
}

// StartStepSpan implements metrics.Tracer.
func (t *OtelTracer) StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+execution.StepName,
		trace.WithAttributes(
			attribute.String("batch.step.name", execution.StepName),
			attribute.String("batch.step.execution_id", execution.ID),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", execution.Status.String()),
			attribute.Int("batch.step.read_count", execution.ReadCount),
			attribute.Int("batch.step.write_count", execution.WriteCount),
			attribute.Int("batch.step.filter_count", execution.FilterCount),
			attribute.Int("batch.step.skip_count", execution.SkipCount()),
			attribute.Int("batch.step.commit_count", execution.CommitCount),
			attribute.Int("batch.step.rollback_count", execution.RollbackCount),
		)
		endSpan(span, execution.Status, execution.Failures)
	}
}

func endSpan(span trace.Span, status model.BatchStatus, failures model.FailureList) {
	switch status {
	case model.BatchStatusCompleted:
		span.SetStatus(codes.Ok, "")
	case model.BatchStatusFailed:
		desc := status.String()
		if len(failures) > 0 {
			desc = failures[len(failures)-1]
		}
		span.SetStatus(codes.Error, desc)
	}
	span.End()
}

// RecordError implements metrics.Tracer.
func (t *OtelTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err, trace.WithAttributes(
		attribute.String("batch.module", module),
		attribute.String("batch.error.kind", exception.KindOf(err).String()),
	))
}

// RecordEvent implements metrics.Tracer.
func (t *OtelTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case bool:
		return attribute.Bool(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
