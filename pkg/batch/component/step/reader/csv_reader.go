// Package reader provides restartable item readers over flat files and database tables.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// LineMapper converts the fields of one CSV record into an item.
type LineMapper[T any] func(fields []string) (T, error)

// CSVItemReader reads items from a delimited file, one record per item. The number of
// records consumed is kept in the ExecutionContext under "<name>.read.count"; a reopened
// reader skips that many records.
type CSVItemReader[T any] struct {
	name        string
	path        string
	comma       rune
	linesToSkip int
	mapper      LineMapper[T]

	file      *os.File
	csv       *csv.Reader
	readCount int
	ec        model.ExecutionContext
}

var _ port.ItemReader[any] = (*CSVItemReader[any])(nil)

// CSVOption configures a CSVItemReader.
type CSVOption func(*csvOptions)

type csvOptions struct {
	comma       rune
	linesToSkip int
}

// WithComma sets the field delimiter. The default is ','.
func WithComma(comma rune) CSVOption {
	return func(o *csvOptions) { o.comma = comma }
}

// WithLinesToSkip skips header lines at the top of the file.
func WithLinesToSkip(n int) CSVOption {
	return func(o *csvOptions) { o.linesToSkip = n }
}

// NewCSVItemReader creates a reader of the file at path.
func NewCSVItemReader[T any](name, path string, mapper LineMapper[T], opts ...CSVOption) *CSVItemReader[T] {
	o := csvOptions{comma: ','}
	for _, opt := range opts {
		opt(&o)
	}
	return &CSVItemReader[T]{
		name:        name,
		path:        path,
		comma:       o.comma,
		linesToSkip: o.linesToSkip,
		mapper:      mapper,
		ec:          model.NewExecutionContext(),
	}
}

func (r *CSVItemReader[T]) countKey() string {
	return r.name + ".read.count"
}

// Open opens the file and skips the header lines and the records already consumed
// according to ec.
func (r *CSVItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if err := r.SetExecutionContext(ctx, ec); err != nil {
		return err
	}
	file, err := os.Open(r.path)
	if err != nil {
		return exception.NewSourceReadError(r.name, fmt.Sprintf("failed to open '%s'", r.path), err, false, false)
	}
	r.file = file
	r.csv = csv.NewReader(file)
	r.csv.Comma = r.comma
	r.csv.FieldsPerRecord = -1
	r.csv.TrimLeadingSpace = true

	for i := 0; i < r.linesToSkip; i++ {
		if _, err := r.csv.Read(); err != nil && !errors.Is(err, io.EOF) {
			return exception.NewSourceReadError(r.name, "failed to skip header line", err, false, false)
		}
	}
	for i := 0; i < r.readCount; i++ {
		if _, err := r.csv.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return exception.NewSourceReadError(r.name, "failed to skip consumed records", err, false, false)
			}
		}
	}
	if r.readCount > 0 {
		logger.Infof("CSVItemReader '%s': resuming '%s' after %d records.", r.name, r.path, r.readCount)
	}
	return nil
}

// Read returns the next item, or io.EOF at the end of the file. A malformed record is
// consumed and reported as a skippable SourceReadError.
func (r *CSVItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.csv == nil {
		return zero, exception.NewSourceReadError(r.name, "reader is not open", nil, false, false)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	fields, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return zero, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.advance()
			return zero, exception.NewSourceReadError(r.name, fmt.Sprintf("malformed record at line %d", parseErr.Line), err, true, false)
		}
		return zero, exception.NewSourceReadError(r.name, "failed to read record", err, false, true)
	}
	r.advance()

	item, err := r.mapper(fields)
	if err != nil {
		line, _ := r.csv.FieldPos(0)
		return zero, exception.NewSourceReadError(r.name, fmt.Sprintf("failed to map record at line %d", line), err, true, false)
	}
	return item, nil
}

func (r *CSVItemReader[T]) advance() {
	r.readCount++
	r.ec.Put(r.countKey(), r.readCount)
}

// Close closes the file.
func (r *CSVItemReader[T]) Close(ctx context.Context) error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.csv = nil, nil
	if err != nil {
		return exception.NewSourceReadError(r.name, "failed to close file", err, false, false)
	}
	return nil
}

// SetExecutionContext restores the read position from ec.
func (r *CSVItemReader[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = model.NewExecutionContext()
	r.readCount = 0
	if ec == nil {
		return nil
	}
	if count, ok := ec.GetInt(r.countKey()); ok {
		r.readCount = count
		r.ec.Put(r.countKey(), count)
	}
	return nil
}

// GetExecutionContext returns the read position.
func (r *CSVItemReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return r.ec.Copy(), nil
}
