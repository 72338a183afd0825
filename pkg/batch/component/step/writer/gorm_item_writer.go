package writer

import (
	"context"
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// Write modes of GormItemWriter.
const (
	// WriteModeUpdate updates the row selected by the item's key columns.
	WriteModeUpdate = "UPDATE"
	// WriteModeUpsert inserts the chunk and updates rows that conflict on ConflictColumns.
	WriteModeUpsert = "UPSERT"
)

// GormItemWriterConfig configures a GormItemWriter.
type GormItemWriterConfig[T any] struct {
	// Table is the target table.
	Table string
	// Mode is WriteModeUpdate or WriteModeUpsert.
	Mode string
	// Key returns the column conditions selecting the row of item. Required for WriteModeUpdate.
	Key func(item T) map[string]interface{}
	// ConflictColumns and UpdateColumns drive WriteModeUpsert.
	ConflictColumns []string
	UpdateColumns   []string
	// AssertUpdates fails the chunk when an UPDATE matches no row.
	AssertUpdates bool
}

// GormItemWriter writes items to a table on a named connection. Statements run in the chunk
// transaction when the step's transaction manager was begun on the same connection, so the
// rows commit together with the step checkpoint.
type GormItemWriter[T any] struct {
	name     string
	connName string
	resolver database.DBConnectionResolver
	config   GormItemWriterConfig[T]

	conn database.DBConnection
	ec   model.ExecutionContext
}

var _ port.ItemWriter[any] = (*GormItemWriter[any])(nil)

// NewGormItemWriter validates config and creates the writer.
func NewGormItemWriter[T any](name string, resolver database.DBConnectionResolver, connName string, config GormItemWriterConfig[T]) (*GormItemWriter[T], error) {
	if config.Table == "" {
		return nil, exception.NewConfigurationError("writer", fmt.Sprintf("GormItemWriter '%s' requires a table", name), nil)
	}
	switch config.Mode {
	case WriteModeUpdate:
		if config.Key == nil {
			return nil, exception.NewConfigurationError("writer", fmt.Sprintf("GormItemWriter '%s' requires a key function in UPDATE mode", name), nil)
		}
	case WriteModeUpsert:
		if len(config.ConflictColumns) == 0 {
			return nil, exception.NewConfigurationError("writer", fmt.Sprintf("GormItemWriter '%s' requires conflict columns in UPSERT mode", name), nil)
		}
	default:
		return nil, exception.NewConfigurationError("writer", fmt.Sprintf("GormItemWriter '%s': unsupported mode '%s'", name, config.Mode), nil)
	}
	return &GormItemWriter[T]{
		name:     name,
		connName: connName,
		resolver: resolver,
		config:   config,
		ec:       model.NewExecutionContext(),
	}, nil
}

// Open resolves the connection.
func (w *GormItemWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.resolver.ResolveDBConnection(ctx, w.connName)
	if err != nil {
		return exception.NewSinkWriteError(w.name, fmt.Sprintf("failed to resolve connection '%s'", w.connName), err, false)
	}
	w.conn = conn
	return nil
}

// Write writes items through the executor of ctx. t is only used through ctx.
func (w *GormItemWriter[T]) Write(ctx context.Context, t tx.Tx, items []T) error {
	if w.conn == nil {
		return exception.NewSinkWriteError(w.name, "writer is not open", nil, false)
	}
	if len(items) == 0 {
		return nil
	}
	exec := w.conn.Executor(ctx)

	if w.config.Mode == WriteModeUpsert {
		if _, err := exec.ExecuteUpsert(ctx, &items, w.config.Table, w.config.ConflictColumns, w.config.UpdateColumns); err != nil {
			return w.classify(fmt.Sprintf("failed to upsert %d items into '%s'", len(items), w.config.Table), err)
		}
		logger.Debugf("GormItemWriter '%s' upserted %d items into '%s'.", w.name, len(items), w.config.Table)
		return nil
	}

	for i := range items {
		key := w.config.Key(items[i])
		affected, err := exec.ExecuteUpdate(ctx, &items[i], "UPDATE", w.config.Table, key)
		if err != nil {
			return w.classify(fmt.Sprintf("failed to update '%s' where %v", w.config.Table, key), err)
		}
		if affected == 0 && w.config.AssertUpdates {
			return exception.NewSinkWriteError(w.name, fmt.Sprintf("no row of '%s' matched %v", w.config.Table, key), nil, false)
		}
	}
	logger.Debugf("GormItemWriter '%s' updated %d rows of '%s'.", w.name, len(items), w.config.Table)
	return nil
}

// classify wraps err; constraint violations are not retried.
func (w *GormItemWriter[T]) classify(message string, err error) error {
	retryable := !w.conn.IsDuplicateKeyError(err)
	return exception.NewSinkWriteError(w.name, message, err, retryable)
}

// Close releases nothing; the connection belongs to the resolver.
func (w *GormItemWriter[T]) Close(ctx context.Context) error {
	w.conn = nil
	return nil
}

// SetExecutionContext is a no-op; the writer keeps no position.
func (w *GormItemWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

// GetExecutionContext returns an empty context.
func (w *GormItemWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}
