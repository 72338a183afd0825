// Package inmemory provides an in-memory implementation of the JobRepository interface.
// Writes issued with a transaction in the context are applied only when that transaction commits.
package inmemory

import (
	"context"
	"sync"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
)

const moduleName = "inmemory-repository"

// InMemoryJobRepository keeps job metadata in maps. Stored values are copies; callers never
// share state with the repository.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	checkpointData map[string]*model.CheckpointData
	// seq records insertion order so that "latest" and step order do not depend on clock resolution.
	seq     map[string]int64
	nextSeq int64
	mu      sync.RWMutex
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates an empty InMemoryJobRepository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		checkpointData: make(map[string]*model.CheckpointData),
		seq:            make(map[string]int64),
	}
}

// Close releases resources used by the repository. It holds none.
func (r *InMemoryJobRepository) Close() error {
	return nil
}

// apply runs write now, or when the transaction in ctx commits. write is called with the lock held.
func (r *InMemoryJobRepository) apply(ctx context.Context, write func()) {
	locked := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		write()
	}
	if t, ok := tx.TxFromContext(ctx); ok {
		t.OnAfterCommit(locked)
		return
	}
	locked()
}

// record stores the insertion sequence of id. Called with the lock held.
func (r *InMemoryJobRepository) record(id string) {
	if _, ok := r.seq[id]; ok {
		return
	}
	r.nextSeq++
	r.seq[id] = r.nextSeq
}

func cloneJobInstance(ji *model.JobInstance) *model.JobInstance {
	c := *ji
	c.Parameters = ji.Parameters.Copy()
	return &c
}

// cloneJobExecution copies je without its step executions.
func cloneJobExecution(je *model.JobExecution) *model.JobExecution {
	c := *je
	c.Parameters = je.Parameters.Copy()
	c.ExecutionContext = je.ExecutionContext.Copy()
	c.Failures = append(model.FailureList{}, je.Failures...)
	c.StepExecutions = make([]*model.StepExecution, 0)
	if je.EndTime != nil {
		end := *je.EndTime
		c.EndTime = &end
	}
	return &c
}

// cloneStepExecution copies se without its back-reference.
func cloneStepExecution(se *model.StepExecution) *model.StepExecution {
	c := *se
	c.JobExecution = nil
	c.ExecutionContext = se.ExecutionContext.Copy()
	c.Failures = append(model.FailureList{}, se.Failures...)
	if se.EndTime != nil {
		end := *se.EndTime
		c.EndTime = &end
	}
	return &c
}
