package skip

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

func TestSkipPolicy_LimitIsExclusive(t *testing.T) {
	p := NewDefaultSkipPolicyFactory().Create(2, []string{"TransformError"})
	bad := exception.NewTransformError("processor", "bad price", nil, false, false)

	for i := 0; i < 2; i++ {
		assert.True(t, p.ShouldSkip(bad), "skip %d is within the limit", i+1)
		p.IncrementSkipCount()
	}
	assert.False(t, p.ShouldSkip(bad), "the third skippable failure is fatal")
	assert.True(t, p.IsSkippable(bad))
	assert.Equal(t, 2, p.SkipCount())
	assert.Equal(t, 2, p.SkipLimit())
}

func TestSkipPolicy_Classification(t *testing.T) {
	p := NewDefaultSkipPolicyFactory().Create(10, []string{"io.ErrUnexpectedEOF"})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"flagged skippable", exception.NewSourceReadError("reader", "bad line", nil, true, false), true},
		{"not flagged", exception.NewSourceReadError("reader", "bad line", nil, false, false), false},
		{"configured sentinel", exception.NewSourceReadError("reader", "truncated", errors.New("x"), false, false), false},
		{"configured sentinel wrapped", exception.NewSourceReadError("reader", "truncated", io.ErrUnexpectedEOF, false, false), true},
		{"sink write never skips", exception.NewSinkWriteError("writer", "disk full", nil, true), false},
		{"repository never skips", exception.NewRepositoryError("repository", "down", nil), false},
		{"cancellation never skips", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsSkippable(tt.err))
		})
	}
}

func TestSkipPolicy_ZeroLimitDisablesSkipping(t *testing.T) {
	p := NewDefaultSkipPolicyFactory().Create(0, []string{"SourceReadError"})
	assert.False(t, p.ShouldSkip(exception.NewSourceReadError("reader", "bad", nil, true, false)))
}
