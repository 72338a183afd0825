package reader

import (
	"context"
	"fmt"
	"io"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// GormQuery describes the rows a GormPagingItemReader reads. OrderBy must give a stable
// total order, otherwise offsets do not identify the same rows across runs.
type GormQuery struct {
	Table   string
	Columns []string
	Where   map[string]interface{}
	OrderBy string
}

// GormPagingItemReader reads rows of a table page by page through gorm. Pages are fetched
// with the transaction of the context when it belongs to the same connection, so the reader
// never holds a connection between chunks. The number of rows handed out is kept in the
// ExecutionContext under "<name>.read.count" and a reopened reader resumes at that offset.
type GormPagingItemReader[T any] struct {
	name      string
	connName  string
	resolver  database.DBConnectionResolver
	query     GormQuery
	pageSize  int
	adapter   *gormadapter.GormDBAdapter
	page      []T
	pageIndex int
	exhausted bool
	readCount int
	ec        model.ExecutionContext
}

var _ port.ItemReader[any] = (*GormPagingItemReader[any])(nil)

// NewGormPagingItemReader creates a reader over connection connName.
func NewGormPagingItemReader[T any](name string, resolver database.DBConnectionResolver, connName string, query GormQuery, pageSize int) (*GormPagingItemReader[T], error) {
	if query.Table == "" {
		return nil, exception.NewConfigurationError(name, "table is required", nil)
	}
	if query.OrderBy == "" {
		return nil, exception.NewConfigurationError(name, "orderBy is required for restartable paging", nil)
	}
	if pageSize <= 0 {
		return nil, exception.NewConfigurationError(name, fmt.Sprintf("page size must be positive, got %d", pageSize), nil)
	}
	return &GormPagingItemReader[T]{
		name:     name,
		connName: connName,
		resolver: resolver,
		query:    query,
		pageSize: pageSize,
		ec:       model.NewExecutionContext(),
	}, nil
}

func (r *GormPagingItemReader[T]) countKey() string {
	return r.name + ".read.count"
}

// Open resolves the connection and restores the offset from ec.
func (r *GormPagingItemReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if err := r.SetExecutionContext(ctx, ec); err != nil {
		return err
	}
	conn, err := r.resolver.ResolveDBConnection(ctx, r.connName)
	if err != nil {
		return exception.NewSourceReadError(r.name, fmt.Sprintf("failed to resolve connection '%s'", r.connName), err, false, false)
	}
	adapter, err := gormadapter.AsGormAdapter(conn)
	if err != nil {
		return exception.NewConfigurationError(r.name, "paging reader requires a gorm connection", err)
	}
	r.adapter = adapter
	r.page, r.pageIndex, r.exhausted = nil, 0, false
	if r.readCount > 0 {
		logger.Infof("GormPagingItemReader '%s': resuming '%s' at offset %d.", r.name, r.query.Table, r.readCount)
	}
	return nil
}

// Read returns the next row, or io.EOF once the table has no more rows.
func (r *GormPagingItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.adapter == nil {
		return zero, exception.NewSourceReadError(r.name, "reader is not open", nil, false, false)
	}
	if r.pageIndex >= len(r.page) {
		if r.exhausted {
			return zero, io.EOF
		}
		if err := r.fetchPage(ctx); err != nil {
			return zero, err
		}
		if len(r.page) == 0 {
			return zero, io.EOF
		}
	}
	item := r.page[r.pageIndex]
	r.pageIndex++
	r.readCount++
	r.ec.Put(r.countKey(), r.readCount)
	return item, nil
}

func (r *GormPagingItemReader[T]) fetchPage(ctx context.Context) error {
	db := r.adapter.DB(ctx).Table(r.query.Table)
	if len(r.query.Columns) > 0 {
		db = db.Select(r.query.Columns)
	}
	if len(r.query.Where) > 0 {
		db = db.Where(r.query.Where)
	}
	page := make([]T, 0, r.pageSize)
	if err := db.Order(r.query.OrderBy).Offset(r.readCount).Limit(r.pageSize).Find(&page).Error; err != nil {
		return exception.NewSourceReadError(r.name, fmt.Sprintf("failed to read page at offset %d", r.readCount), err, false, true)
	}
	logger.Debugf("GormPagingItemReader '%s': fetched %d rows at offset %d.", r.name, len(page), r.readCount)
	r.page, r.pageIndex = page, 0
	r.exhausted = len(page) < r.pageSize
	return nil
}

// Close drops the buffered page. The connection belongs to its provider.
func (r *GormPagingItemReader[T]) Close(ctx context.Context) error {
	r.page, r.pageIndex, r.adapter = nil, 0, nil
	return nil
}

// SetExecutionContext restores the offset from ec.
func (r *GormPagingItemReader[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
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

// GetExecutionContext returns the offset.
func (r *GormPagingItemReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return r.ec.Copy(), nil
}
