// Package repository defines the Job Repository: durable storage of job instances,
// executions and step checkpoints used to identify runs and resume failed ones.
package repository

import (
	"context"
	"errors"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// ErrCheckpointDataNotFound is returned when no checkpoint was committed for a step execution.
var ErrCheckpointDataNotFound = errors.New("checkpoint data not found")

func init() {
	exception.RegisterErrorType("ErrCheckpointDataNotFound", ErrCheckpointDataNotFound)
}

// CheckpointDataRepository persists the committed restart state of step executions.
type CheckpointDataRepository interface {
	// SaveCheckpointData inserts or replaces the checkpoint of data.StepExecutionID.
	SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error

	// FindCheckpointData returns ErrCheckpointDataNotFound when absent.
	FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error)
}

// JobRepository persists batch execution metadata.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	CheckpointDataRepository

	// Close releases resources used by the repository.
	Close() error
}

// IsNotFound reports whether err is one of the repository not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobInstanceNotFound) ||
		errors.Is(err, ErrJobExecutionNotFound) ||
		errors.Is(err, ErrStepExecutionNotFound) ||
		errors.Is(err, ErrCheckpointDataNotFound)
}
