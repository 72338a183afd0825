package usecase

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
)

// JobsGroup is the fx value group jobs are contributed to.
const JobsGroup = "jobs"

// ErrJobNotFound is returned for a job name nothing registered.
var ErrJobNotFound = errors.New("no such job")

// JobRegistry looks up jobs by name.
type JobRegistry interface {
	// GetJob returns the job called name.
	GetJob(name string) (port.Job, error)
	// JobNames returns the registered names in lexical order.
	JobNames() []string
}

// MapJobRegistry is a JobRegistry over a fixed set of jobs.
type MapJobRegistry struct {
	jobs map[string]port.Job
}

var _ JobRegistry = (*MapJobRegistry)(nil)

// JobRegistryParams defines the dependencies of NewJobRegistryProvider.
type JobRegistryParams struct {
	fx.In
	Jobs []port.Job `group:"jobs"`
}

// NewJobRegistryProvider builds the registry from the "jobs" group.
func NewJobRegistryProvider(p JobRegistryParams) (*MapJobRegistry, error) {
	return NewMapJobRegistry(p.Jobs...)
}

// NewMapJobRegistry registers jobs. Two jobs with the same name are rejected.
func NewMapJobRegistry(jobs ...port.Job) (*MapJobRegistry, error) {
	r := &MapJobRegistry{jobs: make(map[string]port.Job, len(jobs))}
	for _, job := range jobs {
		name := job.JobName()
		if _, dup := r.jobs[name]; dup {
			return nil, fmt.Errorf("job '%s' is registered twice", name)
		}
		r.jobs[name] = job
	}
	return r, nil
}

// GetJob implements JobRegistry.
func (r *MapJobRegistry) GetJob(name string) (port.Job, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (available: %v)", ErrJobNotFound, name, r.JobNames())
	}
	return job, nil
}

// JobNames implements JobRegistry.
func (r *MapJobRegistry) JobNames() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
