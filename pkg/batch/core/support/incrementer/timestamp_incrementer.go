package incrementer

import (
	"fmt"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// DefaultTimestampKey is the parameter name used by NewTimestampIncrementer when none is given.
const DefaultTimestampKey = "timestamp"

// TimestampIncrementer sets a parameter to the current Unix time in milliseconds.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer for the parameter name (DefaultTimestampKey when empty).
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = DefaultTimestampKey
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext returns a copy of params with the timestamp parameter set.
// The value always moves forward, even when called twice within the same millisecond.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()

	ts := i.now().UnixMilli()
	if prev, ok := params.GetInt64(i.name); ok && ts <= prev {
		ts = prev + 1
	}
	next.Put(i.name, ts)
	logger.Debugf("TimestampIncrementer: setting '%s' to %d.", i.name, ts)
	return next
}

// String returns the string representation of TimestampIncrementer.
func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
