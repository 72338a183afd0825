package job

import (
	"github.com/ssyoni/hello-spring-batch/internal/step/tasklet"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/job/runner"
	taskletstep "github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/tasklet"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/configbinder"
)

// Names of helloJob and its step.
const (
	HelloJobName  = "helloJob"
	HelloStepName = "helloStep"
)

// HelloJobProperties are read from batch.jobs.helloJob.
type HelloJobProperties struct {
	DefaultMessage string `yaml:"default_message"`
}

// NewHelloJob creates helloJob: a single tasklet step greeting with the "message" job
// parameter.
func NewHelloJob(p Params) (*runner.SimpleJob, error) {
	props := HelloJobProperties{DefaultMessage: "Hello, Spring Batch!"}
	if err := configbinder.BindProperties(p.Config.JobProperties(HelloJobName), &props); err != nil {
		return nil, err
	}

	step, err := taskletstep.NewTaskletStep(
		HelloStepName,
		tasklet.NewHelloTasklet(props.DefaultMessage),
		p.JobRepository,
		p.TxManager,
		taskletstep.WithMaxIterations(p.Config.Batch.TaskletMaxIterations),
		taskletstep.WithStepListeners(p.Logging),
		taskletstep.WithMetricRecorder(p.MetricRecorder),
		taskletstep.WithTracer(p.Tracer),
	)
	if err != nil {
		return nil, err
	}
	return runner.NewSimpleJob(HelloJobName, p.JobRepository, []port.Step{step},
		runner.WithIncrementer(p.TimestampIncrementer),
		runner.WithJobListeners(p.Logging),
		runner.WithMetricRecorder(p.MetricRecorder),
		runner.WithTracer(p.Tracer),
	)
}
