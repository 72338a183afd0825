package processor

import (
	"context"
	"strings"

	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// CustomerItemProcessor normalizes a customer name: surrounding blanks are trimmed and the
// name is upper-cased. Customers without a name are filtered.
type CustomerItemProcessor struct{}

var _ port.ItemProcessor[domain.Customer, domain.Customer] = (*CustomerItemProcessor)(nil)

// NewCustomerItemProcessor creates a CustomerItemProcessor.
func NewCustomerItemProcessor() *CustomerItemProcessor {
	return &CustomerItemProcessor{}
}

// Process implements port.ItemProcessor.
func (p *CustomerItemProcessor) Process(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	name := strings.TrimSpace(customer.Name)
	if name == "" {
		logger.Debugf("CustomerItemProcessor: customer %d has no name, filtered.", customer.ID)
		return domain.Customer{}, port.ErrFiltered
	}
	out := customer
	out.Name = strings.ToUpper(name)
	logger.Debugf("CustomerItemProcessor: %q -> %q", customer.Name, out.Name)
	return out, nil
}
