package item_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/item"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

type price struct {
	Amount float64
}

func nonNegative(p *price) error {
	if p.Amount < 0 {
		return errors.New("negative amount")
	}
	return nil
}

func TestCompositeItemProcessor(t *testing.T) {
	calls := 0
	increment := item.FuncItemProcessor[*price, *price](func(ctx context.Context, p *price) (*price, error) {
		calls++
		return &price{Amount: p.Amount + 1000}, nil
	})
	chain := item.NewCompositeItemProcessor[*price](
		item.NewValidatingItemProcessor("priceValidator", nonNegative, true),
		increment,
	)

	out, err := chain.Process(context.Background(), &price{Amount: 10.5})
	require.NoError(t, err)
	assert.Equal(t, 1010.5, out.Amount)

	_, err = chain.Process(context.Background(), &price{Amount: -1})
	assert.ErrorIs(t, err, port.ErrFiltered)
	assert.Equal(t, 1, calls, "a filtered item stops the chain")
}

func TestCompositeItemProcessor_NilOutputFilters(t *testing.T) {
	dropAll := item.FuncItemProcessor[*price, *price](func(ctx context.Context, p *price) (*price, error) {
		return nil, nil
	})
	_, err := item.NewCompositeItemProcessor[*price](dropAll).Process(context.Background(), &price{})
	assert.ErrorIs(t, err, port.ErrFiltered)
}

func TestCompositeItemProcessor_Empty(t *testing.T) {
	out, err := item.NewCompositeItemProcessor[string]().Process(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", out)
}

func TestValidatingItemProcessor_SkippableError(t *testing.T) {
	p := item.NewValidatingItemProcessor("priceValidator", nonNegative, false)

	_, err := p.Process(context.Background(), &price{Amount: -5})
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindTransform))
	var batchErr *exception.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.True(t, batchErr.IsSkippable())
}

func TestPassThroughItemProcessor(t *testing.T) {
	out, err := item.NewPassThroughItemProcessor[int]().Process(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
