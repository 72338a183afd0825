package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/internal/step/processor"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

func TestProductProcessor_AddsIncrement(t *testing.T) {
	p := processor.NewProductProcessor(1000)

	out, err := p.Process(context.Background(), domain.Product{ID: 1, Name: "desk", Price: 250.5})
	require.NoError(t, err)
	assert.Equal(t, domain.Product{ID: 1, Name: "desk", Price: 1250.5}, out)
}

func TestProductProcessor_InvalidProductIsSkippable(t *testing.T) {
	p := processor.NewProductProcessor(1000)

	for _, invalid := range []domain.Product{
		{ID: 2, Name: " ", Price: 10},
		{ID: 3, Name: "lamp", Price: -1},
	} {
		_, err := p.Process(context.Background(), invalid)
		var be *exception.BatchError
		require.True(t, errors.As(err, &be), "item %d", invalid.ID)
		assert.Equal(t, exception.KindTransform, be.Kind)
		assert.True(t, be.IsSkippable())
	}
}

func TestCustomerItemProcessor(t *testing.T) {
	p := processor.NewCustomerItemProcessor()

	out, err := p.Process(context.Background(), domain.Customer{ID: 1, Name: "  kim min ", Age: 31})
	require.NoError(t, err)
	assert.Equal(t, domain.Customer{ID: 1, Name: "KIM MIN", Age: 31}, out)

	_, err = p.Process(context.Background(), domain.Customer{ID: 2, Name: "   ", Age: 40})
	assert.ErrorIs(t, err, port.ErrFiltered)
}
