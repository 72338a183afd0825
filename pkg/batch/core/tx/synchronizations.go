package tx

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Synchronizations stores the commit hooks of a transaction. Tx implementations embed it.
type Synchronizations struct {
	mu            sync.Mutex
	beforeCommit  []func(ctx context.Context) error
	afterCommit   []func()
	afterRollback []func()
}

// OnBeforeCommit implements Tx.
func (s *Synchronizations) OnBeforeCommit(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = append(s.beforeCommit, fn)
}

// OnAfterCommit implements Tx.
func (s *Synchronizations) OnAfterCommit(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterCommit = append(s.afterCommit, fn)
}

// OnAfterRollback implements Tx.
func (s *Synchronizations) OnAfterRollback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterRollback = append(s.afterRollback, fn)
}

// TriggerBeforeCommit runs the before-commit hooks in registration order and stops at the first error.
func (s *Synchronizations) TriggerBeforeCommit(ctx context.Context) error {
	for _, fn := range s.snapshotBefore() {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCommit runs the after-commit hooks and clears every hook.
func (s *Synchronizations) TriggerAfterCommit() {
	hooks := s.drain(true)
	for _, fn := range hooks {
		fn()
	}
}

// TriggerAfterRollback runs the after-rollback hooks and clears every hook.
func (s *Synchronizations) TriggerAfterRollback() {
	hooks := s.drain(false)
	for _, fn := range hooks {
		fn()
	}
}

func (s *Synchronizations) snapshotBefore() []func(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]func(ctx context.Context) error(nil), s.beforeCommit...)
}

func (s *Synchronizations) drain(committed bool) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.afterRollback
	if committed {
		hooks = s.afterCommit
	}
	s.beforeCommit, s.afterCommit, s.afterRollback = nil, nil, nil
	return hooks
}

// CommitWith runs the full commit protocol around commitFn: before-commit hooks, commitFn,
// then after-commit hooks. When a hook or commitFn fails, rollbackFn is called, the
// after-rollback hooks run and the errors are returned together.
func (s *Synchronizations) CommitWith(ctx context.Context, commitFn func() error, rollbackFn func() error) error {
	if err := s.TriggerBeforeCommit(ctx); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, err)
		if rbErr := rollbackFn(); rbErr != nil {
			result = multierror.Append(result, rbErr)
		}
		s.TriggerAfterRollback()
		return result.ErrorOrNil()
	}
	if err := commitFn(); err != nil {
		s.TriggerAfterRollback()
		return err
	}
	s.TriggerAfterCommit()
	return nil
}
