// Package logging provides listeners that write the lifecycle of jobs, steps and chunks to
// the batch logger.
package logging

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// LoggingListener logs job, step and chunk boundaries at INFO and DEBUG, and skips and
// retries at WARN.
type LoggingListener struct{}

var (
	_ port.JobExecutionListener  = (*LoggingListener)(nil)
	_ port.StepExecutionListener = (*LoggingListener)(nil)
	_ port.ChunkListener         = (*LoggingListener)(nil)
	_ port.SkipListener          = (*LoggingListener)(nil)
	_ port.RetryListener         = (*LoggingListener)(nil)
)

// NewLoggingListener creates a LoggingListener.
func NewLoggingListener() *LoggingListener {
	return &LoggingListener{}
}

func (l *LoggingListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("Job '%s' started. ExecutionID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.String())
}

func (l *LoggingListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	switch jobExecution.Status {
	case model.BatchStatusCompleted:
		logger.Infof("Job '%s' finished. Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
	default:
		logger.Warnf("Job '%s' finished. Status: %s, ExitStatus: %s, Failures: %v", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, jobExecution.Failures)
	}
}

func (l *LoggingListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("Step '%s' started. ExecutionID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("Step '%s' finished. Status: %s, Read: %d, Filtered: %d, Written: %d, Skipped: %d, Commits: %d, Rollbacks: %d",
		stepExecution.StepName, stepExecution.Status,
		stepExecution.ReadCount, stepExecution.FilterCount, stepExecution.WriteCount,
		stepExecution.SkipCount(), stepExecution.CommitCount, stepExecution.RollbackCount)
}

func (l *LoggingListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Chunk of step '%s' started.", stepExecution.StepName)
}

func (l *LoggingListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("Chunk of step '%s' committed. Read: %d, Written: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount)
}

func (l *LoggingListener) AfterChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Warnf("Chunk of step '%s' rolled back: %v", stepExecution.StepName, err)
}

func (l *LoggingListener) OnSkipInRead(ctx context.Context, err error) {
	logger.Warnf("Skipping unreadable item (%s): %v", exception.KindOf(err), err)
}

func (l *LoggingListener) OnSkipInProcess(ctx context.Context, item interface{}, err error) {
	logger.Warnf("Skipping item %+v (%s): %v", item, exception.KindOf(err), err)
}

func (l *LoggingListener) OnRetry(ctx context.Context, operation string, attempt int, err error) {
	logger.Warnf("Retrying %s (attempt %d): %v", operation, attempt, err)
}
