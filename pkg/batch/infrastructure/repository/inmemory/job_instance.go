package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// SaveJobInstance persists a new JobInstance.
// An instance with the same ID, or the same job name and parameters, is rejected with ErrJobInstanceAlreadyExists.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	if jobInstance.ParametersHash == "" {
		hash, err := jobInstance.Parameters.Hash()
		if err != nil {
			return exception.NewRepositoryError(moduleName, "failed to hash job parameters", err)
		}
		jobInstance.ParametersHash = hash
	}

	r.mu.RLock()
	for _, ji := range r.jobInstances {
		if ji.ID == jobInstance.ID || (ji.JobName == jobInstance.JobName && ji.ParametersHash == jobInstance.ParametersHash) {
			r.mu.RUnlock()
			return exception.NewRepositoryError(moduleName, fmt.Sprintf("JobInstance '%s' (ID: %s)", jobInstance.JobName, jobInstance.ID), repository.ErrJobInstanceAlreadyExists)
		}
	}
	r.mu.RUnlock()

	stored := cloneJobInstance(jobInstance)
	r.apply(ctx, func() {
		r.jobInstances[stored.ID] = stored
		r.record(stored.ID)
	})
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ji, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	return cloneJobInstance(ji), nil
}

// FindJobInstanceByJobNameAndParameters finds the JobInstance identified by jobName and the hash of params.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewRepositoryError(moduleName, "failed to hash job parameters", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ji := range r.jobInstances {
		if ji.JobName == jobName && ji.ParametersHash == hash {
			return cloneJobInstance(ji), nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// GetJobInstanceCount returns the number of instances of jobName.
func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, ji := range r.jobInstances {
		if ji.JobName == jobName {
			count++
		}
	}
	return count, nil
}

// GetJobNames returns the distinct job names, sorted.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, ji := range r.jobInstances {
		if _, ok := seen[ji.JobName]; ok {
			continue
		}
		seen[ji.JobName] = struct{}{}
		names = append(names, ji.JobName)
	}
	sort.Strings(names)
	return names, nil
}
