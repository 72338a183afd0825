package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// Metrics are registered on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobsActive         *prometheus.GaugeVec
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec

	// Item and chunk Metrics
	itemReadCounter      *prometheus.CounterVec
	itemProcessCounter   *prometheus.CounterVec
	itemWriteCounter     *prometheus.CounterVec
	itemSkipCounter      *prometheus.CounterVec
	itemRetryCounter     *prometheus.CounterVec
	chunkCommitCounter   *prometheus.CounterVec
	chunkRollbackCounter *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a PrometheusRecorder with the Go runtime and process
// collectors registered next to the batch metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stepLabels := []string{"job_name", "step_name"}
	r := &PrometheusRecorder{
		registry: registry,
		jobsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_job_active",
			Help: "Number of job executions currently running.",
		}, []string{"job_name"}),
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of finished job executions by status.",
		}, []string{"job_name", "status", "exit_status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Total number of finished step executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		itemReadCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_read_total",
			Help: "Total items read by step.",
		}, stepLabels),
		itemProcessCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_process_total",
			Help: "Total items transformed by step.",
		}, stepLabels),
		itemWriteCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_write_total",
			Help: "Total items written by step.",
		}, stepLabels),
		itemSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_skip_total",
			Help: "Total items skipped by step and error kind.",
		}, []string{"job_name", "step_name", "reason"}),
		itemRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_retry_total",
			Help: "Total retries by step and error kind.",
		}, []string{"job_name", "step_name", "reason"}),
		chunkCommitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_commit_total",
			Help: "Total chunk commits by step.",
		}, stepLabels),
		chunkRollbackCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_rollback_total",
			Help: "Total chunk rollbacks by step.",
		}, stepLabels),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named batch operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		r.jobsActive,
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.itemReadCounter,
		r.itemProcessCounter,
		r.itemWriteCounter,
		r.itemSkipCounter,
		r.itemRetryCounter,
		r.chunkCommitCounter,
		r.chunkRollbackCounter,
		r.operationDurationSeconds,
	)
	return r
}

// Registry returns the Prometheus registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteToTextfile writes the registry in the text exposition format, for the node exporter
// textfile collector.
func (r *PrometheusRecorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(_ context.Context, execution *model.JobExecution) {
	r.jobsActive.WithLabelValues(execution.JobName).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the final status and duration of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(_ context.Context, execution *model.JobExecution) {
	r.jobsActive.WithLabelValues(execution.JobName).Dec()
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String(), execution.ExitStatus.String()).Inc()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(execution.JobName, execution.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart is a no-op: step metrics are recorded when the step ends.
func (r *PrometheusRecorder) RecordStepStart(context.Context, *model.StepExecution) {}

// RecordStepEnd records the final status and duration of a StepExecution.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := unknownJob
	if execution.JobExecution != nil {
		jobName = execution.JobExecution.JobName
	}
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Inc()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.stepDurationSeconds.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", execution.StepName, duration)
}

// RecordItemRead records a successful read.
func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.itemReadCounter.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordItemProcess records a successful transform.
func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.itemProcessCounter.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordItemWrite records count items flushed to the sink.
func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.itemWriteCounter.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

// RecordItemSkip records a skipped item.
func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	r.itemSkipCounter.WithLabelValues(jobNameFromContext(ctx), stepName, reason).Inc()
}

// RecordItemRetry records a retried operation.
func (r *PrometheusRecorder) RecordItemRetry(ctx context.Context, stepName string, reason string) {
	r.itemRetryCounter.WithLabelValues(jobNameFromContext(ctx), stepName, reason).Inc()
}

// RecordChunkCommit records a committed chunk.
func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, _ int) {
	r.chunkCommitCounter.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordChunkRollback records a rolled back chunk.
func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbackCounter.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordDuration records a named operation. Tags are not labels, so they are only logged.
func (r *PrometheusRecorder) RecordDuration(_ context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
	if len(tags) > 0 {
		logger.Debugf("Metrics: %s took %s %v", name, duration, tags)
	}
}
