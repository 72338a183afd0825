// Package skip decides whether a failed read or transform may be skipped.
package skip

import (
	"context"
	"errors"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// SkipPolicy tracks skippable failures of one step execution against a limit.
type SkipPolicy interface {
	// IsSkippable classifies err without looking at the limit.
	IsSkippable(err error) bool
	// ShouldSkip reports whether err is skippable and the limit still allows one more skip.
	ShouldSkip(err error) bool
	// IncrementSkipCount records a skip.
	IncrementSkipCount()
	// SkipCount returns the number of skips recorded so far.
	SkipCount() int
	// SkipLimit returns the maximum number of skips.
	SkipLimit() int
}

// DefaultSkipPolicyFactory creates a SkipPolicy per step execution.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create creates a SkipPolicy. A skipLimit of 0 disables skipping.
func (f *DefaultSkipPolicyFactory) Create(skipLimit int, skippableExceptions []string) SkipPolicy {
	return &defaultSkipPolicy{
		skipLimit:           skipLimit,
		skippableExceptions: skippableExceptions,
	}
}

// FromConfig creates a SkipPolicy from the item_skip section.
func (f *DefaultSkipPolicyFactory) FromConfig(cfg config.SkipConfig) SkipPolicy {
	return f.Create(cfg.SkipLimit, cfg.SkippableExceptions)
}

type defaultSkipPolicy struct {
	skipLimit           int
	skippableExceptions []string
	currentSkipCount    int
}

// IsSkippable is true for a BatchError flagged skippable or an error matching a configured name.
// Sink, repository and configuration errors and cancellation are never skippable.
func (p *defaultSkipPolicy) IsSkippable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch exception.KindOf(err) {
	case exception.KindSinkWrite, exception.KindRepository, exception.KindConfiguration:
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsSkippable() {
		return true
	}
	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

func (p *defaultSkipPolicy) ShouldSkip(err error) bool {
	return p.currentSkipCount < p.skipLimit && p.IsSkippable(err)
}

func (p *defaultSkipPolicy) IncrementSkipCount() {
	p.currentSkipCount++
}

func (p *defaultSkipPolicy) SkipCount() int {
	return p.currentSkipCount
}

func (p *defaultSkipPolicy) SkipLimit() int {
	return p.skipLimit
}

var _ SkipPolicy = (*defaultSkipPolicy)(nil)
