package generic_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/step/writer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/tasklet/generic"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/test"
)

type product struct {
	ID    int64   `parquet:"name=id, type=INT64"`
	Name  string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price float64 `parquet:"name=price, type=DOUBLE"`
}

type durationRecorder struct {
	*metrics.NoOpMetricRecorder
	mu    sync.Mutex
	names []string
	tags  []map[string]string
}

func (r *durationRecorder) RecordDuration(ctx context.Context, name string, d time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.tags = append(r.tags, tags)
}

func newExport(t *testing.T, src *test.SliceReader[product], recorder metrics.MetricRecorder) (*generic.ParquetExportTasklet[product], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.parquet")
	w, err := writer.NewParquetWriter("productParquetWriter", map[string]interface{}{"outputPath": path}, new(product))
	require.NoError(t, err)
	tasklet, err := generic.NewParquetExportTasklet[product]("productExport", map[string]interface{}{"readBufferSize": "2"}, src, w, recorder)
	require.NoError(t, err)
	return tasklet, path
}

func TestParquetExportTasklet_ExportsAllItems(t *testing.T) {
	recorder := &durationRecorder{NoOpMetricRecorder: metrics.NewNoOpMetricRecorder()}
	src := test.NewSliceReader(product{1, "pen", 1010}, product{2, "ink", 1003}, product{3, "pad", 1007})
	tasklet, path := newExport(t, src, recorder)

	se := &model.StepExecution{StepName: "exportStep"}
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, model.RepeatStatusFinished, status)
	assert.Equal(t, 3, se.ReadCount)
	assert.Equal(t, 3, se.WriteCount)
	assert.Equal(t, 1, src.Opened)
	assert.Equal(t, 1, src.Closed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Equal(t, []string{"parquet_export"}, recorder.names)
	assert.Equal(t, "exportStep", recorder.tags[0]["step_name"])
}

func TestParquetExportTasklet_ReadFailureLeavesNoFile(t *testing.T) {
	src := test.NewSliceReader(product{1, "pen", 1010}, product{2, "ink", 1003}, product{3, "pad", 1007})
	src.BadRecords = map[int]error{2: errors.New("disk error")}
	tasklet, path := newExport(t, src, nil)

	se := &model.StepExecution{StepName: "exportStep"}
	_, err := tasklet.Execute(context.Background(), se)
	assert.ErrorContains(t, err, "disk error")
	assert.Equal(t, 2, se.ReadCount)
	assert.Equal(t, 2, se.WriteCount)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParquetExportTasklet_RequiresReaderAndWriter(t *testing.T) {
	_, err := generic.NewParquetExportTasklet[product]("productExport", nil, nil, nil, nil)
	assert.ErrorContains(t, err, "requires a reader and a writer")
}
