package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
)

func TestNewMetricRecorder(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Batch.Metrics.Enabled = false
		recorder, err := NewMetricRecorder(fxtest.NewLifecycle(t), cfg)
		require.NoError(t, err)
		assert.IsType(t, metrics.NewNoOpMetricRecorder(), recorder)
	})

	t.Run("PrometheusWritesTextfileOnStop", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Batch.Metrics.Enabled = true
		cfg.Batch.Metrics.TextfilePath = filepath.Join(t.TempDir(), "batch.prom")
		lc := fxtest.NewLifecycle(t)

		recorder, err := NewMetricRecorder(lc, cfg)
		require.NoError(t, err)
		require.IsType(t, &PrometheusRecorder{}, recorder)
		recorder.RecordItemRead(context.Background(), "stepJob")

		lc.RequireStart().RequireStop()
		content, err := os.ReadFile(cfg.Batch.Metrics.TextfilePath)
		require.NoError(t, err)
		assert.Contains(t, string(content), `batch_item_read_total{job_name="unknown",step_name="stepJob"} 1`)
	})

	t.Run("AsyncWrapsBackend", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Batch.Metrics.Enabled = true
		cfg.Batch.Metrics.AsyncBufferSize = 8
		lc := fxtest.NewLifecycle(t)

		recorder, err := NewMetricRecorder(lc, cfg)
		require.NoError(t, err)
		assert.IsType(t, &AsyncMetricRecorder{}, recorder)
		lc.RequireStart().RequireStop()
	})
}

func TestNewTracer(t *testing.T) {
	cfg := config.NewConfig()
	tracer, err := NewTracer(fxtest.NewLifecycle(t), cfg)
	require.NoError(t, err)
	assert.IsType(t, metrics.NewNoOpTracer(), tracer)

	cfg.Batch.Tracing.Enabled = true
	cfg.Batch.Tracing.Exporter = config.TracingExporterNone
	lc := fxtest.NewLifecycle(t)
	tracer, err = NewTracer(lc, cfg)
	require.NoError(t, err)
	assert.IsType(t, &OtelTracer{}, tracer)
	lc.RequireStart().RequireStop()
}
