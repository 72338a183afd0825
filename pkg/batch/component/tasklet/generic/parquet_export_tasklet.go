// Package generic provides tasklets reusable across jobs.
package generic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// ParquetExportTaskletConfig holds the configuration for ParquetExportTasklet.
type ParquetExportTaskletConfig struct {
	// ReadBufferSize is the number of items handed to the writer at once.
	ReadBufferSize int `mapstructure:"readBufferSize"`
}

// aborter is implemented by writers that can discard a partial output on Close.
type aborter interface {
	Abort()
}

// ParquetExportTasklet copies every item of a reader into a writer in one invocation. The
// reader always starts from the beginning, so a restarted export rewrites the whole output.
type ParquetExportTasklet[T any] struct {
	name     string
	config   ParquetExportTaskletConfig
	reader   port.ItemReader[T]
	writer   port.ItemWriter[T]
	recorder metrics.MetricRecorder
}

var _ port.Tasklet = (*ParquetExportTasklet[any])(nil)

// NewParquetExportTasklet decodes properties and creates the tasklet. A nil recorder keeps the
// no-op recorder.
func NewParquetExportTasklet[T any](
	name string,
	properties map[string]interface{},
	reader port.ItemReader[T],
	writer port.ItemWriter[T],
	recorder metrics.MetricRecorder,
) (*ParquetExportTasklet[T], error) {
	var config ParquetExportTaskletConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, exception.NewConfigurationError("tasklet", "failed to create decoder for ParquetExportTasklet", err)
	}
	if err := decoder.Decode(properties); err != nil {
		return nil, exception.NewConfigurationError("tasklet", fmt.Sprintf("failed to decode properties of '%s'", name), err)
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 1000
	}
	if reader == nil || writer == nil {
		return nil, exception.NewConfigurationError("tasklet", fmt.Sprintf("'%s' requires a reader and a writer", name), nil)
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &ParquetExportTasklet[T]{
		name:     name,
		config:   config,
		reader:   reader,
		writer:   writer,
		recorder: recorder,
	}, nil
}

// Execute reads until the reader is exhausted, writing buffered batches, and returns FINISHED.
func (t *ParquetExportTasklet[T]) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	start := time.Now()
	if err := t.reader.Open(ctx, model.NewExecutionContext()); err != nil {
		return model.RepeatStatusFinished, err
	}
	if err := t.writer.Open(ctx, model.NewExecutionContext()); err != nil {
		if closeErr := t.reader.Close(ctx); closeErr != nil {
			logger.Warnf("ParquetExportTasklet '%s': failed to close reader: %v", t.name, closeErr)
		}
		return model.RepeatStatusFinished, err
	}

	read, written, runErr := t.copy(ctx)
	if runErr != nil {
		if a, ok := t.writer.(aborter); ok {
			a.Abort()
		}
	}

	var closeErr error
	if err := t.reader.Close(ctx); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}
	if err := t.writer.Close(ctx); err != nil {
		closeErr = multierror.Append(closeErr, err)
	}

	stepExecution.ReadCount += read
	stepExecution.WriteCount += written
	elapsed := time.Since(start)
	t.recorder.RecordDuration(ctx, "parquet_export", elapsed, map[string]string{
		"step_name": stepExecution.StepName,
		"tasklet":   t.name,
	})

	if runErr != nil {
		return model.RepeatStatusFinished, runErr
	}
	if closeErr != nil {
		return model.RepeatStatusFinished, closeErr
	}
	logger.Infof("ParquetExportTasklet '%s' exported %d items in %s.", t.name, written, elapsed.Round(time.Millisecond))
	return model.RepeatStatusFinished, nil
}

func (t *ParquetExportTasklet[T]) copy(ctx context.Context) (read, written int, err error) {
	buffer := make([]T, 0, t.config.ReadBufferSize)
	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := t.writer.Write(ctx, nil, buffer); err != nil {
			return err
		}
		written += len(buffer)
		buffer = buffer[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return read, written, err
		}
		item, err := t.reader.Read(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		if err != nil {
			return read, written, err
		}
		read++
		buffer = append(buffer, item)
		if len(buffer) >= t.config.ReadBufferSize {
			if err := flush(); err != nil {
				return read, written, err
			}
		}
	}
	return read, written, flush()
}
