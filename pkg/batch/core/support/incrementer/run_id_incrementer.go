// Package incrementer provides JobParametersIncrementer implementations used to start
// a fresh run of a job whose parameters would otherwise identify a completed instance.
package incrementer

import (
	"fmt"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter name used by NewRunIDIncrementer when none is given.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets an int64 run id parameter to 1, or increments it when present.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer for the parameter name (DefaultRunIDKey when empty).
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// GetNext returns a copy of params with the run id set to the next value.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()

	current, ok := params.GetInt64(i.name)
	if !ok {
		next.Put(i.name, int64(1))
		logger.Debugf("RunIDIncrementer: '%s' not found, setting to 1.", i.name)
		return next
	}
	next.Put(i.name, current+1)
	logger.Debugf("RunIDIncrementer: incrementing '%s' from %d to %d.", i.name, current, current+1)
	return next
}

// String returns the string representation of RunIDIncrementer.
func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
