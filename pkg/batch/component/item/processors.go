// Package item provides reusable item processors: adapters for plain functions, validation
// and chaining.
package item

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// FuncItemProcessor adapts a function to port.ItemProcessor.
type FuncItemProcessor[I, O any] func(ctx context.Context, item I) (O, error)

var _ port.ItemProcessor[string, int] = FuncItemProcessor[string, int](nil)

// Process calls f.
func (f FuncItemProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}

// PassThroughItemProcessor returns every item unchanged.
type PassThroughItemProcessor[T any] struct{}

// NewPassThroughItemProcessor creates a PassThroughItemProcessor.
func NewPassThroughItemProcessor[T any]() *PassThroughItemProcessor[T] {
	return &PassThroughItemProcessor[T]{}
}

// Process returns item.
func (p *PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// ValidatingItemProcessor checks each item with a validator. An invalid item is filtered,
// or reported as a skippable TransformError when filtering is off.
type ValidatingItemProcessor[T any] struct {
	name     string
	validate func(item T) error
	filter   bool
}

// NewValidatingItemProcessor creates a ValidatingItemProcessor.
func NewValidatingItemProcessor[T any](name string, validate func(item T) error, filter bool) *ValidatingItemProcessor[T] {
	return &ValidatingItemProcessor[T]{name: name, validate: validate, filter: filter}
}

// Process validates item.
func (p *ValidatingItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	err := p.validate(item)
	if err == nil {
		return item, nil
	}
	var zero T
	if p.filter {
		logger.Debugf("ValidatingItemProcessor '%s': filtered %+v: %v", p.name, item, err)
		return zero, port.ErrFiltered
	}
	return zero, exception.NewTransformError(p.name, fmt.Sprintf("invalid item %+v", item), err, true, false)
}

// CompositeItemProcessor runs processors in order, handing each output to the next. A
// filtered item stops the chain.
type CompositeItemProcessor[T any] struct {
	processors []port.ItemProcessor[T, T]
}

// NewCompositeItemProcessor chains processors. Without processors it passes items through.
func NewCompositeItemProcessor[T any](processors ...port.ItemProcessor[T, T]) *CompositeItemProcessor[T] {
	return &CompositeItemProcessor[T]{processors: processors}
}

// Process runs the chain.
func (p *CompositeItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	var zero T
	current := item
	for _, processor := range p.processors {
		out, err := processor.Process(ctx, current)
		if err != nil {
			if errors.Is(err, port.ErrFiltered) {
				return zero, port.ErrFiltered
			}
			return zero, err
		}
		if isNilValue(out) {
			return zero, port.ErrFiltered
		}
		current = out
	}
	return current, nil
}

// isNilValue reports whether v is a nil pointer, the filtered marker of pointer outputs.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
