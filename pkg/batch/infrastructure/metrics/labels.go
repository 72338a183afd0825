// Package metrics implements the engine's MetricRecorder and Tracer on Prometheus and
// OpenTelemetry, and bootstraps the OTLP exporters selected in the configuration.
package metrics

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
)

const unknownJob = "unknown"

// jobNameFromContext returns the job name of the step execution running in ctx.
func jobNameFromContext(ctx context.Context) string {
	se := port.StepExecutionFromContext(ctx)
	if se == nil || se.JobExecution == nil {
		return unknownJob
	}
	return se.JobExecution.JobName
}
