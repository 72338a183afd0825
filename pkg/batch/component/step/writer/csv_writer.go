// Package writer provides item writers for flat files, database tables and parquet files.
package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// FieldExtractor returns the CSV fields of an item.
type FieldExtractor[T any] func(item T) []string

// CSVItemWriter appends items to a delimited file. Records of a chunk are buffered and
// flushed just before the chunk transaction commits; a rolled back chunk leaves the file
// untouched. The committed file size is kept in the ExecutionContext under
// "<name>.written.offset" and a reopened writer truncates the file back to it, so records
// of a failed chunk are never duplicated.
type CSVItemWriter[T any] struct {
	name      string
	path      string
	comma     rune
	extractor FieldExtractor[T]

	file      *os.File
	committed int64
	pending   bytes.Buffer
	hooked    tx.Tx
	txStart   int64
	ec        model.ExecutionContext
}

var _ port.ItemWriter[any] = (*CSVItemWriter[any])(nil)

// NewCSVItemWriter creates a writer of the file at path. The directory is created on Open.
func NewCSVItemWriter[T any](name, path string, extractor FieldExtractor[T]) *CSVItemWriter[T] {
	return &CSVItemWriter[T]{
		name:      name,
		path:      path,
		comma:     ',',
		extractor: extractor,
		ec:        model.NewExecutionContext(),
	}
}

func (w *CSVItemWriter[T]) offsetKey() string {
	return w.name + ".written.offset"
}

// Open opens the file for appending. With an offset in ec the file is first truncated to it.
func (w *CSVItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to create directory of '%s'", w.path), err, false)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to open '%s'", w.path), err, false)
	}

	offset, restored := int64(0), false
	if ec != nil {
		offset, restored = ec.GetInt64(w.offsetKey())
	}
	if restored {
		if err := file.Truncate(offset); err != nil {
			file.Close()
			return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to truncate '%s' to %d bytes", w.path, offset), err, false)
		}
		logger.Infof("CSVItemWriter '%s': restored '%s' to the last committed offset %d.", w.name, w.path, offset)
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to stat '%s'", w.path), err, false)
		}
		offset = info.Size()
	}
	if _, err := file.Seek(offset, 0); err != nil {
		file.Close()
		return exception.NewSinkWriteError(w.name, "failed to seek to the committed offset", err, false)
	}

	w.file = file
	w.committed = offset
	w.pending.Reset()
	w.hooked = nil
	w.ec = model.NewExecutionContext()
	w.ec.Put(w.offsetKey(), offset)
	return nil
}

// Write formats items and registers their flush on t. Without a transaction the records are
// written at once.
func (w *CSVItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if w.file == nil {
		return exception.NewSinkWriteError(w.name, "writer is not open", nil, false)
	}
	var chunk bytes.Buffer
	enc := csv.NewWriter(&chunk)
	enc.Comma = w.comma
	for _, item := range items {
		if err := enc.Write(w.extractor(item)); err != nil {
			return exception.NewSinkWriteError(w.name, "failed to format record", err, false)
		}
	}
	enc.Flush()
	if err := enc.Error(); err != nil {
		return exception.NewSinkWriteError(w.name, "failed to format records", err, false)
	}

	if t == nil {
		w.pending.Write(chunk.Bytes())
		return w.flush()
	}

	w.pending.Write(chunk.Bytes())
	w.ec.Put(w.offsetKey(), w.committed+int64(w.pending.Len()))
	if w.hooked == t {
		return nil
	}
	w.hooked = t
	w.txStart = w.committed
	t.OnBeforeCommit(func(ctx context.Context) error { return w.flush() })
	t.OnAfterCommit(func() { w.hooked = nil })
	t.OnAfterRollback(w.discard)
	return nil
}

func (w *CSVItemWriter[T]) flush() error {
	if w.pending.Len() == 0 {
		return nil
	}
	n, err := w.file.Write(w.pending.Bytes())
	if err == nil {
		err = w.file.Sync()
	}
	if err != nil {
		// Drop the partial write so the file ends at the last committed record.
		if truncErr := w.file.Truncate(w.committed); truncErr != nil {
			logger.Errorf("CSVItemWriter '%s': failed to truncate after a failed flush: %v", w.name, truncErr)
		}
		_, _ = w.file.Seek(w.committed, 0)
		return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to flush %d bytes to '%s'", w.pending.Len(), w.path), err, true)
	}
	w.committed += int64(n)
	w.pending.Reset()
	w.ec.Put(w.offsetKey(), w.committed)
	return nil
}

// discard drops the pending records of a rolled back transaction. Records already flushed by
// it, when the commit failed after the before-commit hooks, are truncated away.
func (w *CSVItemWriter[T]) discard() {
	w.hooked = nil
	w.pending.Reset()
	if w.file != nil && w.committed != w.txStart {
		if err := w.file.Truncate(w.txStart); err != nil {
			logger.Errorf("CSVItemWriter '%s': failed to truncate rolled back records: %v", w.name, err)
		} else {
			_, _ = w.file.Seek(w.txStart, 0)
			w.committed = w.txStart
		}
	}
	w.ec.Put(w.offsetKey(), w.committed)
}

// Close closes the file. Records not flushed by a commit are dropped.
func (w *CSVItemWriter[T]) Close(ctx context.Context) error {
	if w.file == nil {
		return nil
	}
	w.pending.Reset()
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return exception.NewSinkWriteError(w.name, "failed to close file", err, false)
	}
	return nil
}

// SetExecutionContext replaces the writer state with ec.
func (w *CSVItemWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = model.NewExecutionContext()
	if offset, ok := ec.GetInt64(w.offsetKey()); ok {
		w.ec.Put(w.offsetKey(), offset)
	}
	return nil
}

// GetExecutionContext returns the offset the file will have once the current chunk commits.
func (w *CSVItemWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
