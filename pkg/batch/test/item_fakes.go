package test

import (
	"context"
	"sync"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

// PositionKey is the execution context key under which SliceReader stores its position.
const PositionKey = "slice.reader.position"

// SliceReader is a port.ItemReader over a slice that resumes from PositionKey.
type SliceReader[T any] struct {
	Items []T
	// BadRecords maps a position to the error returned instead of that item. The item is consumed.
	BadRecords map[int]error
	// Transient maps a position to errors returned, one per call, before the item is read.
	Transient map[int][]error

	pos    int
	Opened int
	Closed int
}

var _ port.ItemReader[string] = (*SliceReader[string])(nil)

// NewSliceReader creates a SliceReader over items.
func NewSliceReader[T any](items ...T) *SliceReader[T] {
	return &SliceReader[T]{Items: items}
}

// Open repositions the reader from ec.
func (r *SliceReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.Opened++
	return r.SetExecutionContext(ctx, ec)
}

// Read returns the next item or port.ErrNoMoreItems.
func (r *SliceReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.pos >= len(r.Items) {
		return zero, port.ErrNoMoreItems
	}
	if errs := r.Transient[r.pos]; len(errs) > 0 {
		r.Transient[r.pos] = errs[1:]
		return zero, errs[0]
	}
	if err, ok := r.BadRecords[r.pos]; ok {
		r.pos++
		return zero, err
	}
	item := r.Items[r.pos]
	r.pos++
	return item, nil
}

// Close implements port.ItemReader.
func (r *SliceReader[T]) Close(ctx context.Context) error {
	r.Closed++
	return nil
}

// SetExecutionContext restores the position.
func (r *SliceReader[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.pos = 0
	if pos, ok := ec.GetInt(PositionKey); ok {
		r.pos = pos
	}
	return nil
}

// GetExecutionContext returns the position.
func (r *SliceReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(PositionKey, r.pos)
	return ec, nil
}

// FuncProcessor adapts a function to port.ItemProcessor.
type FuncProcessor[I, O any] func(ctx context.Context, item I) (O, error)

// Process calls f.
func (f FuncProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}

// RecordingWriter is a port.ItemWriter that keeps the chunks whose transaction committed.
type RecordingWriter[T any] struct {
	// FailOn is called with the 1-based Write call number; a non-nil error fails that call.
	FailOn func(call int, items []T) error

	mu       sync.Mutex
	calls    int
	chunks   [][]T
	Opened   int
	Closed   int
	openedEC model.ExecutionContext
}

var _ port.ItemWriter[string] = (*RecordingWriter[string])(nil)

// NewRecordingWriter creates an empty RecordingWriter.
func NewRecordingWriter[T any]() *RecordingWriter[T] {
	return &RecordingWriter[T]{}
}

// Open implements port.ItemWriter.
func (w *RecordingWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	w.Opened++
	w.openedEC = ec.Copy()
	return nil
}

// Write records items once t commits.
func (w *RecordingWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	w.mu.Lock()
	w.calls++
	call := w.calls
	w.mu.Unlock()

	if w.FailOn != nil {
		if err := w.FailOn(call, items); err != nil {
			return err
		}
	}
	chunk := append([]T(nil), items...)
	t.OnAfterCommit(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.chunks = append(w.chunks, chunk)
	})
	return nil
}

// Close implements port.ItemWriter.
func (w *RecordingWriter[T]) Close(ctx context.Context) error {
	w.Closed++
	return nil
}

// SetExecutionContext implements port.ItemWriter.
func (w *RecordingWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// GetExecutionContext implements port.ItemWriter. The writer keeps no position.
func (w *RecordingWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return model.NewExecutionContext(), nil
}

// Chunks returns the committed chunks in commit order.
func (w *RecordingWriter[T]) Chunks() [][]T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]T(nil), w.chunks...)
}

// Items returns the committed items in commit order.
func (w *RecordingWriter[T]) Items() []T {
	var items []T
	for _, c := range w.Chunks() {
		items = append(items, c...)
	}
	return items
}

// Calls returns the number of Write calls, committed or not.
func (w *RecordingWriter[T]) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// OpenedWith returns the execution context passed to the last Open.
func (w *RecordingWriter[T]) OpenedWith() model.ExecutionContext {
	return w.openedEC
}

// RecordingCompletionListener counts completion notifications.
type RecordingCompletionListener struct {
	mu       sync.Mutex
	Received []*model.JobExecution
}

// OnJobCompletion implements port.CompletionListener.
func (l *RecordingCompletionListener) OnJobCompletion(ctx context.Context, je *model.JobExecution) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Received = append(l.Received, je)
}

// Count returns the number of notifications.
func (l *RecordingCompletionListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Received)
}
