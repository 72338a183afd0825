package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// ParquetWriterConfig holds the configuration for ParquetWriter.
type ParquetWriterConfig struct {
	// OutputPath is the parquet file to produce (e.g. "output/output-product.parquet").
	OutputPath string `mapstructure:"outputPath"`
	// CompressionType is the codec of the column chunks: SNAPPY, GZIP or NONE.
	CompressionType string `mapstructure:"compressionType"`
	// Parallelism is the number of goroutines marshalling a row group.
	Parallelism int64 `mapstructure:"parallelism"`
}

// ParquetWriter streams items into a temporary parquet file and moves it to OutputPath when
// closed. A writer that failed leaves no file at OutputPath. The schema is reflected from the
// parquet tags of T.
type ParquetWriter[T any] struct {
	name          string
	config        ParquetWriterConfig
	itemPrototype *T
	codec         parquet.CompressionCodec

	file    source.ParquetFile
	pw      *writer.ParquetWriter
	tmpPath string
	written int64
	failed  bool
	ec      model.ExecutionContext
}

var _ port.ItemWriter[any] = (*ParquetWriter[any])(nil)

// NewParquetWriter decodes properties into a ParquetWriterConfig and creates the writer.
// itemPrototype is a pointer to a zero value of the item type.
func NewParquetWriter[T any](name string, properties map[string]interface{}, itemPrototype *T) (*ParquetWriter[T], error) {
	var config ParquetWriterConfig
	if err := mapstructure.WeakDecode(properties, &config); err != nil {
		return nil, exception.NewConfigurationError("writer", fmt.Sprintf("failed to decode ParquetWriter properties for '%s'", name), err)
	}
	if config.OutputPath == "" {
		return nil, exception.NewConfigurationError("writer", fmt.Sprintf("ParquetWriter '%s' requires 'outputPath' property", name), nil)
	}
	if config.CompressionType == "" {
		config.CompressionType = "SNAPPY"
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	codec, err := getCompressionCodec(config.CompressionType)
	if err != nil {
		return nil, exception.NewConfigurationError("writer", fmt.Sprintf("invalid compression type for ParquetWriter '%s'", name), err)
	}
	return &ParquetWriter[T]{
		name:          name,
		config:        config,
		itemPrototype: itemPrototype,
		codec:         codec,
		ec:            model.NewExecutionContext(),
	}, nil
}

// OutputPath returns the file produced by Close.
func (w *ParquetWriter[T]) OutputPath() string {
	return w.config.OutputPath
}

// Open creates the temporary file next to OutputPath.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if err := os.MkdirAll(filepath.Dir(w.config.OutputPath), 0o755); err != nil {
		return exception.NewSinkWriteError("writer", fmt.Sprintf("failed to create directory of '%s'", w.config.OutputPath), err, false)
	}
	w.tmpPath = w.config.OutputPath + ".tmp"
	file, err := local.NewLocalFileWriter(w.tmpPath)
	if err != nil {
		return exception.NewSinkWriteError("writer", fmt.Sprintf("failed to create '%s'", w.tmpPath), err, false)
	}
	pw, err := writer.NewParquetWriter(file, w.itemPrototype, w.config.Parallelism)
	if err != nil {
		file.Close()
		os.Remove(w.tmpPath)
		return exception.NewSinkWriteError("writer", fmt.Sprintf("failed to create parquet writer for '%s'", w.name), err, false)
	}
	pw.CompressionType = w.codec

	w.file = file
	w.pw = pw
	w.written = 0
	w.failed = false
	w.ec = model.NewExecutionContext()
	logger.Infof("ParquetWriter '%s' opened. Output: %s, Compression: %s", w.name, w.config.OutputPath, w.config.CompressionType)
	return nil
}

// Write appends items to the current row group. The parquet file is not transactional, so t
// is not used.
func (w *ParquetWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if w.pw == nil {
		return exception.NewSinkWriteError("writer", fmt.Sprintf("ParquetWriter '%s' is not open", w.name), nil, false)
	}
	for _, item := range items {
		if err := w.pw.Write(item); err != nil {
			w.failed = true
			return exception.NewSinkWriteError("writer", fmt.Sprintf("failed to write item to parquet in '%s'", w.name), err, false)
		}
		w.written++
	}
	w.ec.Put(w.name+".written.count", w.written)
	return nil
}

// Abort marks the output as incomplete. Close then discards the temporary file.
func (w *ParquetWriter[T]) Abort() {
	w.failed = true
}

// Close finishes the file and moves it to OutputPath.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if w.pw == nil {
		return nil
	}
	var multiErr error

	func() {
		defer func() {
			if r := recover(); r != nil {
				multiErr = multierror.Append(multiErr, exception.NewSinkWriteError("writer", fmt.Sprintf("parquet writer panicked during WriteStop in '%s': %v", w.name, r), nil, false))
			}
		}()
		if err := w.pw.WriteStop(); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewSinkWriteError("writer", fmt.Sprintf("failed to finish parquet file in '%s'", w.name), err, false))
		}
	}()
	if err := w.file.Close(); err != nil {
		multiErr = multierror.Append(multiErr, exception.NewSinkWriteError("writer", fmt.Sprintf("failed to close '%s'", w.tmpPath), err, false))
	}
	w.pw = nil
	w.file = nil

	if multiErr != nil || w.failed {
		if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
			multiErr = multierror.Append(multiErr, err)
		}
		if multiErr != nil {
			logger.Errorf("ParquetWriter '%s' discarded its output: %v", w.name, multiErr)
		}
		return multiErr
	}
	if err := os.Rename(w.tmpPath, w.config.OutputPath); err != nil {
		return exception.NewSinkWriteError("writer", fmt.Sprintf("failed to move '%s' to '%s'", w.tmpPath, w.config.OutputPath), err, false)
	}
	logger.Infof("ParquetWriter '%s' wrote %d records to %s", w.name, w.written, w.config.OutputPath)
	return nil
}

// getCompressionCodec returns the Parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// SetExecutionContext is a no-op; an export always rewrites the whole file.
func (w *ParquetWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// GetExecutionContext returns the number of records written since Open.
func (w *ParquetWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
