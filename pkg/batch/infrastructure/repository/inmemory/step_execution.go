package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// SaveStepExecution persists a new StepExecution.
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.RLock()
	_, exists := r.stepExecutions[stepExecution.ID]
	r.mu.RUnlock()
	if exists {
		return exception.NewRepositoryError(moduleName, fmt.Sprintf("StepExecution with ID %s already exists", stepExecution.ID), nil)
	}

	stored := cloneStepExecution(stepExecution)
	r.apply(ctx, func() {
		r.stepExecutions[stored.ID] = stored
		r.record(stored.ID)
	})
	return nil
}

// UpdateStepExecution updates a StepExecution whose Version matches the stored one, then increments Version.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.RLock()
	current, exists := r.stepExecutions[stepExecution.ID]
	var currentVersion int
	if exists {
		currentVersion = current.Version
	}
	r.mu.RUnlock()

	if !exists {
		return exception.NewRepositoryError(moduleName, fmt.Sprintf("StepExecution with ID %s not found for update", stepExecution.ID), repository.ErrStepExecutionNotFound)
	}
	if currentVersion != stepExecution.Version {
		return exception.NewOptimisticLockingFailureException(moduleName,
			fmt.Sprintf("StepExecution (ID: %s) version %d does not match stored version %d", stepExecution.ID, stepExecution.Version, currentVersion), nil)
	}

	stepExecution.Version++
	stored := cloneStepExecution(stepExecution)
	r.apply(ctx, func() {
		r.stepExecutions[stored.ID] = stored
	})
	return nil
}

// FindStepExecutionByID finds a StepExecution by its ID. The back-reference is not populated.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	se, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	return cloneStepExecution(se), nil
}

// FindStepExecutionsByJobExecutionID returns the step executions of a JobExecution in the order they were saved.
func (r *InMemoryJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.StepExecution, 0)
	for _, se := range r.sortedStepExecutions(jobExecutionID) {
		result = append(result, cloneStepExecution(se))
	}
	return result, nil
}

// sortedStepExecutions is called with the read lock held.
func (r *InMemoryJobRepository) sortedStepExecutions(jobExecutionID string) []*model.StepExecution {
	var list []*model.StepExecution
	for _, se := range r.stepExecutions {
		if se.JobExecutionID == jobExecutionID {
			list = append(list, se)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.seq[list[i].ID] < r.seq[list[j].ID]
	})
	return list
}
