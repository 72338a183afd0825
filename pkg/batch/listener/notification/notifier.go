// Package notification reports finished job executions to a Notifier.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// Notifier delivers the result of a job execution to an external party.
type Notifier interface {
	// NotifyJobCompletion is called once per launch with the final execution.
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error
}

// LogNotifier writes the result of each execution to the batch logger.
type LogNotifier struct{}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion implements Notifier.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) error {
	logger.Infof("%s", Summary(execution))
	return nil
}

// Summary formats the outcome of execution on one line.
func Summary(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime).Round(time.Millisecond)
	}
	return fmt.Sprintf(
		"Job '%s' (ExecutionID: %s) finished with Status: %s, ExitStatus: %s, ExitCode: %d. Duration: %s, Steps: %d, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.Status,
		execution.ExitStatus,
		execution.ExitCode,
		duration,
		len(execution.StepExecutions),
		len(execution.Failures),
	)
}

// NotificationListener is a port.CompletionListener that forwards each finished execution to
// a Notifier. Notifier errors are logged and never affect the execution.
type NotificationListener struct {
	notifier Notifier
}

var _ port.CompletionListener = (*NotificationListener)(nil)

// NewNotificationListener creates a NotificationListener over notifier.
func NewNotificationListener(notifier Notifier) *NotificationListener {
	return &NotificationListener{notifier: notifier}
}

// OnJobCompletion implements port.CompletionListener.
func (l *NotificationListener) OnJobCompletion(ctx context.Context, jobExecution *model.JobExecution) {
	if err := l.notifier.NotifyJobCompletion(ctx, jobExecution); err != nil {
		logger.Warnf("Notification for job '%s' failed: %v", jobExecution.JobName, err)
	}
}
