package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// metricEvent is a recorder call queued for the worker goroutine.
type metricEvent struct {
	kind          string
	jobExecution  *model.JobExecution
	stepExecution *model.StepExecution
	stepName      string
	count         int
	reason        string
	duration      time.Duration
	tags          map[string]string
}

const (
	eventJobStart      = "job_start"
	eventJobEnd        = "job_end"
	eventStepStart     = "step_start"
	eventStepEnd       = "step_end"
	eventItemRead      = "item_read"
	eventItemProcess   = "item_process"
	eventItemWrite     = "item_write"
	eventItemSkip      = "item_skip"
	eventItemRetry     = "item_retry"
	eventChunkCommit   = "chunk_commit"
	eventChunkRollback = "chunk_rollback"
	eventDuration      = "duration"
)

// AsyncMetricRecorder queues recorder calls and applies them to a synchronous recorder on a
// worker goroutine, so a slow backend never delays a chunk. Events are dropped when the
// queue is full.
type AsyncMetricRecorder struct {
	eventQueue   chan metricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorder starts the worker. A bufferSize of 0 or less uses 100.
func NewAsyncMetricRecorder(bufferSize int, syncRecorder metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan metricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRecorder,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.process(event)
		case <-r.stopCh:
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.process(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: worker stopped after draining %d event(s).", remaining)
			return
		}
	}
}

// process replays event. The step execution captured with the event is put back into the
// context so the synchronous recorder can label it with the job name.
func (r *AsyncMetricRecorder) process(event metricEvent) {
	ctx := context.Background()
	if event.stepExecution != nil {
		ctx = port.WithStepExecution(ctx, event.stepExecution)
	}
	switch event.kind {
	case eventJobStart:
		r.syncRecorder.RecordJobStart(ctx, event.jobExecution)
	case eventJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, event.jobExecution)
	case eventStepStart:
		r.syncRecorder.RecordStepStart(ctx, event.stepExecution)
	case eventStepEnd:
		r.syncRecorder.RecordStepEnd(ctx, event.stepExecution)
	case eventItemRead:
		r.syncRecorder.RecordItemRead(ctx, event.stepName)
	case eventItemProcess:
		r.syncRecorder.RecordItemProcess(ctx, event.stepName)
	case eventItemWrite:
		r.syncRecorder.RecordItemWrite(ctx, event.stepName, event.count)
	case eventItemSkip:
		r.syncRecorder.RecordItemSkip(ctx, event.stepName, event.reason)
	case eventItemRetry:
		r.syncRecorder.RecordItemRetry(ctx, event.stepName, event.reason)
	case eventChunkCommit:
		r.syncRecorder.RecordChunkCommit(ctx, event.stepName, event.count)
	case eventChunkRollback:
		r.syncRecorder.RecordChunkRollback(ctx, event.stepName)
	case eventDuration:
		r.syncRecorder.RecordDuration(ctx, event.stepName, event.duration, event.tags)
	default:
		logger.Warnf("AsyncMetricRecorder: unknown metric event type: %s", event.kind)
	}
}

// Close stops the worker after the queued events were recorded. It is safe to call twice.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *AsyncMetricRecorder) send(event metricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: event queue is full, dropping %s event.", event.kind)
	}
}

// RecordJobStart implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordJobStart(_ context.Context, execution *model.JobExecution) {
	r.send(metricEvent{kind: eventJobStart, jobExecution: execution})
}

// RecordJobEnd implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordJobEnd(_ context.Context, execution *model.JobExecution) {
	r.send(metricEvent{kind: eventJobEnd, jobExecution: execution})
}

// RecordStepStart implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordStepStart(_ context.Context, execution *model.StepExecution) {
	r.send(metricEvent{kind: eventStepStart, stepExecution: execution})
}

// RecordStepEnd implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordStepEnd(_ context.Context, execution *model.StepExecution) {
	r.send(metricEvent{kind: eventStepEnd, stepExecution: execution})
}

// RecordItemRead implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.send(metricEvent{kind: eventItemRead, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName})
}

// RecordItemProcess implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.send(metricEvent{kind: eventItemProcess, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName})
}

// RecordItemWrite implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.send(metricEvent{kind: eventItemWrite, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName, count: count})
}

// RecordItemSkip implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	r.send(metricEvent{kind: eventItemSkip, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName, reason: reason})
}

// RecordItemRetry implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordItemRetry(ctx context.Context, stepName string, reason string) {
	r.send(metricEvent{kind: eventItemRetry, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName, reason: reason})
}

// RecordChunkCommit implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.send(metricEvent{kind: eventChunkCommit, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName, count: count})
}

// RecordChunkRollback implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.send(metricEvent{kind: eventChunkRollback, stepExecution: port.StepExecutionFromContext(ctx), stepName: stepName})
}

// RecordDuration implements metrics.MetricRecorder.
func (r *AsyncMetricRecorder) RecordDuration(_ context.Context, name string, duration time.Duration, tags map[string]string) {
	r.send(metricEvent{kind: eventDuration, stepName: name, duration: duration, tags: tags})
}
