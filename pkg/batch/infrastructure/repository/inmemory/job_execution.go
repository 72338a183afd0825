package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// SaveJobExecution persists a new JobExecution. Its step executions are saved separately.
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.RLock()
	_, exists := r.jobExecutions[jobExecution.ID]
	r.mu.RUnlock()
	if exists {
		return exception.NewRepositoryError(moduleName, fmt.Sprintf("JobExecution with ID %s already exists", jobExecution.ID), nil)
	}

	stored := cloneJobExecution(jobExecution)
	r.apply(ctx, func() {
		r.jobExecutions[stored.ID] = stored
		r.record(stored.ID)
	})
	return nil
}

// UpdateJobExecution updates a JobExecution whose Version matches the stored one, then increments Version.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.RLock()
	current, exists := r.jobExecutions[jobExecution.ID]
	var currentVersion int
	if exists {
		currentVersion = current.Version
	}
	r.mu.RUnlock()

	if !exists {
		return exception.NewRepositoryError(moduleName, fmt.Sprintf("JobExecution with ID %s not found for update", jobExecution.ID), repository.ErrJobExecutionNotFound)
	}
	if currentVersion != jobExecution.Version {
		return exception.NewOptimisticLockingFailureException(moduleName,
			fmt.Sprintf("JobExecution (ID: %s) version %d does not match stored version %d", jobExecution.ID, jobExecution.Version, currentVersion), nil)
	}

	jobExecution.Version++
	stored := cloneJobExecution(jobExecution)
	r.apply(ctx, func() {
		r.jobExecutions[stored.ID] = stored
	})
	return nil
}

// FindJobExecutionByID finds a JobExecution and loads its step executions.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	je, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(je), nil
}

// FindLatestJobExecution returns the most recently created execution of a JobInstance, with its step executions.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID != jobInstanceID {
			continue
		}
		if latest == nil || r.seq[je.ID] > r.seq[latest.ID] {
			latest = je
		}
	}
	if latest == nil {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.withStepExecutions(latest), nil
}

// FindJobExecutionsByJobInstance returns the executions of jobInstance, latest first, without step executions.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := make([]*model.JobExecution, 0)
	for _, je := range r.jobExecutions {
		if je.JobInstanceID == jobInstance.ID {
			executions = append(executions, cloneJobExecution(je))
		}
	}
	sort.Slice(executions, func(i, j int) bool {
		return r.seq[executions[i].ID] > r.seq[executions[j].ID]
	})
	return executions, nil
}

// withStepExecutions clones je and attaches clones of its step executions in insertion order.
// Called with the read lock held.
func (r *InMemoryJobRepository) withStepExecutions(je *model.JobExecution) *model.JobExecution {
	c := cloneJobExecution(je)
	for _, se := range r.sortedStepExecutions(je.ID) {
		cse := cloneStepExecution(se)
		cse.JobExecution = c
		c.StepExecutions = append(c.StepExecutions, cse)
	}
	return c
}
