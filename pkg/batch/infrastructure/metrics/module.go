package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// NewMetricRecorder selects the recorder of batch.metrics: no-op when disabled, otherwise
// Prometheus or OpenTelemetry, optionally behind an AsyncMetricRecorder. Lifecycle hooks
// flush and shut the backend down when the application stops.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config) (metrics.MetricRecorder, error) {
	mc := cfg.Batch.Metrics
	if !mc.Enabled {
		return metrics.NewNoOpMetricRecorder(), nil
	}

	var recorder metrics.MetricRecorder
	switch mc.Backend {
	case config.MetricsBackendOtel:
		provider, err := NewMeterProvider(context.Background(), mc, cfg.Batch.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		otelRecorder, err := NewOtelRecorder(provider)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
		recorder = otelRecorder
	default:
		promRecorder := NewPrometheusRecorder()
		if mc.TextfilePath != "" {
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				logger.Infof("Writing metrics to %s", mc.TextfilePath)
				return promRecorder.WriteToTextfile(mc.TextfilePath)
			}})
		}
		recorder = promRecorder
	}
	logger.Infof("Metrics enabled (backend: %s).", mc.Backend)

	if mc.AsyncBufferSize > 0 {
		async := NewAsyncMetricRecorder(mc.AsyncBufferSize, recorder)
		// Hooks stop in reverse order: the queue drains before the backend flushes.
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			async.Close()
			return nil
		}})
		return async, nil
	}
	return recorder, nil
}

// NewTracer returns an OtelTracer when batch.tracing is enabled and a no-op tracer otherwise.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tc := cfg.Batch.Tracing
	if !tc.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	provider, err := NewTracerProvider(context.Background(), tc)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: provider.Shutdown})
	logger.Infof("Tracing enabled (exporter: %s).", tc.Exporter)
	return NewOtelTracer(provider), nil
}

// Module provides the metrics.MetricRecorder and metrics.Tracer selected by the configuration.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
