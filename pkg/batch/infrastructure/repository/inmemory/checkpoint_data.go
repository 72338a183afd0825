package inmemory

import (
	"context"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
)

// SaveCheckpointData creates or replaces the checkpoint of a step execution.
func (r *InMemoryJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	stored := &model.CheckpointData{
		StepExecutionID:  data.StepExecutionID,
		ExecutionContext: data.ExecutionContext.Copy(),
		LastUpdated:      data.LastUpdated,
	}
	if stored.LastUpdated.IsZero() {
		stored.LastUpdated = time.Now()
	}
	r.apply(ctx, func() {
		r.checkpointData[stored.StepExecutionID] = stored
	})
	return nil
}

// FindCheckpointData returns the committed checkpoint of a step execution.
func (r *InMemoryJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.checkpointData[stepExecutionID]
	if !ok {
		return nil, repository.ErrCheckpointDataNotFound
	}
	return &model.CheckpointData{
		StepExecutionID:  data.StepExecutionID,
		ExecutionContext: data.ExecutionContext.Copy(),
		LastUpdated:      data.LastUpdated,
	}, nil
}
