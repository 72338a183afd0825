package repository

import (
	"context"
	"errors"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// ErrJobInstanceNotFound is returned when a JobInstance is not found.
var ErrJobInstanceNotFound = errors.New("job instance not found")

// ErrJobInstanceAlreadyExists is returned when a JobInstance with the same name and parameters is saved twice.
var ErrJobInstanceAlreadyExists = errors.New("job instance already exists")

func init() {
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
	exception.RegisterErrorType("ErrJobInstanceAlreadyExists", ErrJobInstanceAlreadyExists)
}

// JobInstance defines operations for persisting and retrieving job instances.
type JobInstance interface {
	// SaveJobInstance persists a new JobInstance. A second instance with the same job name
	// and parameters hash fails with ErrJobInstanceAlreadyExists.
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error

	// FindJobInstanceByID returns ErrJobInstanceNotFound when absent.
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)

	// FindJobInstanceByJobNameAndParameters finds the instance identified by jobName and the
	// hash of params. It returns ErrJobInstanceNotFound when absent.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)

	// GetJobInstanceCount returns the number of instances of jobName.
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)

	// GetJobNames returns the distinct job names, sorted.
	GetJobNames(ctx context.Context) ([]string, error)
}
