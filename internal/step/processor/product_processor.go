// Package processor provides the item processors of the application jobs.
package processor

import (
	"context"
	"errors"
	"strings"

	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/item"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
)

// NewProductProcessor validates a product and raises its price by increment. An invalid
// product fails with a skippable TransformError.
func NewProductProcessor(increment float64) port.ItemProcessor[domain.Product, domain.Product] {
	return item.NewCompositeItemProcessor[domain.Product](
		item.NewValidatingItemProcessor("productValidator", validateProduct, false),
		item.FuncItemProcessor[domain.Product, domain.Product](func(ctx context.Context, p domain.Product) (domain.Product, error) {
			p.Price += increment
			return p, nil
		}),
	)
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is empty")
	}
	if p.Price < 0 {
		return errors.New("product price is negative")
	}
	return nil
}
