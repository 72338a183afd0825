package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
)

// instrumentationName names the meter and the tracer of the engine.
const instrumentationName = "github.com/ssyoni/hello-spring-batch/pkg/batch"

// OtelRecorder implements metrics.MetricRecorder with OpenTelemetry instruments.
type OtelRecorder struct {
	jobsActive     metric.Int64UpDownCounter
	jobsFinished   metric.Int64Counter
	jobDuration    metric.Float64Histogram
	stepsFinished  metric.Int64Counter
	stepDuration   metric.Float64Histogram
	itemsRead      metric.Int64Counter
	itemsProcessed metric.Int64Counter
	itemsWritten   metric.Int64Counter
	itemsSkipped   metric.Int64Counter
	retries        metric.Int64Counter
	chunkCommits   metric.Int64Counter
	chunkRollbacks metric.Int64Counter
	operation      metric.Float64Histogram
}

var _ metrics.MetricRecorder = (*OtelRecorder)(nil)

// NewOtelRecorder creates the instruments on a meter of provider.
func NewOtelRecorder(provider metric.MeterProvider) (*OtelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OtelRecorder{}

	var err error
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&r.jobsFinished, "batch.job.finished", "Finished job executions by status."},
		{&r.stepsFinished, "batch.step.finished", "Finished step executions by status."},
		{&r.itemsRead, "batch.item.read", "Items read."},
		{&r.itemsProcessed, "batch.item.processed", "Items transformed."},
		{&r.itemsWritten, "batch.item.written", "Items written."},
		{&r.itemsSkipped, "batch.item.skipped", "Items skipped."},
		{&r.retries, "batch.item.retried", "Retried operations."},
		{&r.chunkCommits, "batch.chunk.commits", "Committed chunks."},
		{&r.chunkRollbacks, "batch.chunk.rollbacks", "Rolled back chunks."},
	}
	for _, c := range counters {
		if *c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}
	if r.jobsActive, err = meter.Int64UpDownCounter("batch.job.active", metric.WithDescription("Running job executions.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.operation, err = meter.Float64Histogram("batch.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func stepAttributes(ctx context.Context, stepName string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("job_name", jobNameFromContext(ctx)),
		attribute.String("step_name", stepName),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

// RecordJobStart implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobsActive.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", execution.JobName)))
}

// RecordJobEnd implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	name := attribute.String("job_name", execution.JobName)
	status := attribute.String("status", execution.Status.String())
	r.jobsActive.Add(ctx, -1, metric.WithAttributes(name))
	r.jobsFinished.Add(ctx, 1, metric.WithAttributes(name, status, attribute.String("exit_status", execution.ExitStatus.String())))
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), metric.WithAttributes(name, status))
	}
}

// RecordStepStart implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordStepStart(context.Context, *model.StepExecution) {}

// RecordStepEnd implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := unknownJob
	if execution.JobExecution != nil {
		jobName = execution.JobExecution.JobName
	}
	attrs := metric.WithAttributes(
		attribute.String("job_name", jobName),
		attribute.String("step_name", execution.StepName),
		attribute.String("status", execution.Status.String()),
	)
	r.stepsFinished.Add(ctx, 1, attrs)
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

// RecordItemRead implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemsRead.Add(ctx, 1, stepAttributes(ctx, stepName))
}

// RecordItemProcess implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemsProcessed.Add(ctx, 1, stepAttributes(ctx, stepName))
}

// RecordItemWrite implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemsWritten.Add(ctx, int64(count), stepAttributes(ctx, stepName))
}

// RecordItemSkip implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	r.itemsSkipped.Add(ctx, 1, stepAttributes(ctx, stepName, attribute.String("reason", reason)))
}

// RecordItemRetry implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordItemRetry(ctx context.Context, stepName string, reason string) {
	r.retries.Add(ctx, 1, stepAttributes(ctx, stepName, attribute.String("reason", reason)))
}

// RecordChunkCommit implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordChunkCommit(ctx context.Context, stepName string, _ int) {
	r.chunkCommits.Add(ctx, 1, stepAttributes(ctx, stepName))
}

// RecordChunkRollback implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbacks.Add(ctx, 1, stepAttributes(ctx, stepName))
}

// RecordDuration implements metrics.MetricRecorder. Tags become attributes.
func (r *OtelRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operation.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
