// Package tasklet provides the tasklets of the application jobs.
package tasklet

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// MessageParameter is the job parameter HelloTasklet greets with.
const MessageParameter = "message"

// HelloTasklet logs a greeting built from the "message" job parameter and finishes.
type HelloTasklet struct {
	defaultMessage string
}

var _ port.Tasklet = (*HelloTasklet)(nil)

// NewHelloTasklet creates a HelloTasklet that falls back to defaultMessage when the job was
// launched without a message.
func NewHelloTasklet(defaultMessage string) *HelloTasklet {
	return &HelloTasklet{defaultMessage: defaultMessage}
}

// Execute implements port.Tasklet.
func (t *HelloTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.RepeatStatusFinished, err
	}
	message := t.defaultMessage
	if je := stepExecution.JobExecution; je != nil {
		if m, ok := je.Parameters.GetString(MessageParameter); ok && m != "" {
			message = m
		}
	}
	logger.Infof("This is %s, %s", stepExecution.StepName, message)
	stepExecution.ExecutionContext.Put("hello.message", message)
	return model.RepeatStatusFinished, nil
}
