// Package item implements the chunk-oriented step: items are read and transformed one at a
// time and written in chunks, each chunk committed in one transaction together with the
// step progress.
package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/retry"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/skip"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// ChunkStep is a port.Step for chunk-oriented processing.
// I is the type read from the source and O the type written to the sink.
type ChunkStep[I, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	chunkSize int

	jobRepository repository.JobRepository
	txManager     tx.TransactionManager
	txOptions     *sql.TxOptions

	itemRetryPolicy  retry.RetryPolicy
	chunkRetryPolicy retry.RetryPolicy
	newSkipPolicy    func() skip.SkipPolicy

	stepListeners  []port.StepExecutionListener
	chunkListeners []port.ChunkListener
	skipListeners  []port.SkipListener
	retryListeners []port.RetryListener

	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// Option configures a ChunkStep.
type Option func(*options)

type options struct {
	txOptions        *sql.TxOptions
	itemRetryPolicy  retry.RetryPolicy
	chunkRetryPolicy retry.RetryPolicy
	newSkipPolicy    func() skip.SkipPolicy
	stepListeners    []port.StepExecutionListener
	chunkListeners   []port.ChunkListener
	skipListeners    []port.SkipListener
	retryListeners   []port.RetryListener
	metricRecorder   metrics.MetricRecorder
	tracer           metrics.Tracer
}

// WithPolicies configures item retry, item skip and chunk retry from the batch configuration.
func WithPolicies(cfg config.BatchConfig) Option {
	return func(o *options) {
		retryFactory := retry.NewDefaultRetryPolicyFactory()
		o.itemRetryPolicy = retryFactory.FromConfig(cfg.ItemRetry)
		o.chunkRetryPolicy = retryFactory.FromConfig(cfg.ChunkRetry)
		skipCfg := cfg.ItemSkip
		o.newSkipPolicy = func() skip.SkipPolicy {
			return skip.NewDefaultSkipPolicyFactory().FromConfig(skipCfg)
		}
	}
}

// WithItemRetryPolicy sets the policy applied to each read and each transform.
func WithItemRetryPolicy(p retry.RetryPolicy) Option {
	return func(o *options) { o.itemRetryPolicy = p }
}

// WithChunkRetryPolicy sets the policy applied to a failed chunk flush.
func WithChunkRetryPolicy(p retry.RetryPolicy) Option {
	return func(o *options) { o.chunkRetryPolicy = p }
}

// WithSkipLimit sets the item skip policy. A new policy is created for every step execution.
func WithSkipLimit(limit int, skippableExceptions ...string) Option {
	return func(o *options) {
		o.newSkipPolicy = func() skip.SkipPolicy {
			return skip.NewDefaultSkipPolicyFactory().Create(limit, skippableExceptions)
		}
	}
}

// WithTransactionOptions sets the options each chunk transaction begins with.
func WithTransactionOptions(txOptions *sql.TxOptions) Option {
	return func(o *options) { o.txOptions = txOptions }
}

// WithStepListeners registers StepExecutionListeners.
func WithStepListeners(listeners ...port.StepExecutionListener) Option {
	return func(o *options) { o.stepListeners = append(o.stepListeners, listeners...) }
}

// WithChunkListeners registers ChunkListeners.
func WithChunkListeners(listeners ...port.ChunkListener) Option {
	return func(o *options) { o.chunkListeners = append(o.chunkListeners, listeners...) }
}

// WithSkipListeners registers SkipListeners.
func WithSkipListeners(listeners ...port.SkipListener) Option {
	return func(o *options) { o.skipListeners = append(o.skipListeners, listeners...) }
}

// WithRetryListeners registers RetryListeners.
func WithRetryListeners(listeners ...port.RetryListener) Option {
	return func(o *options) { o.retryListeners = append(o.retryListeners, listeners...) }
}

// WithMetricRecorder sets the MetricRecorder. Nil keeps the no-op recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.metricRecorder = recorder
		}
	}
}

// WithTracer sets the Tracer. Nil keeps the no-op tracer.
func WithTracer(tracer metrics.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewChunkStep creates a ChunkStep. Without options a failed read, transform or flush is
// neither retried nor skipped.
func NewChunkStep[I, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	jobRepository repository.JobRepository,
	txManager tx.TransactionManager,
	opts ...Option,
) (*ChunkStep[I, O], error) {
	switch {
	case name == "":
		return nil, exception.NewConfigurationError("ChunkStep", "step name must not be empty", nil)
	case reader == nil || processor == nil || writer == nil:
		return nil, exception.NewConfigurationError(name, "reader, processor and writer are required", nil)
	case chunkSize <= 0:
		return nil, exception.NewConfigurationError(name, fmt.Sprintf("chunk size must be greater than 0, got %d", chunkSize), nil)
	case jobRepository == nil || txManager == nil:
		return nil, exception.NewConfigurationError(name, "job repository and transaction manager are required", nil)
	}

	retryFactory := retry.NewDefaultRetryPolicyFactory()
	o := &options{
		itemRetryPolicy:  retryFactory.Create(1, 0, 0, 1, nil),
		chunkRetryPolicy: retryFactory.Create(1, 0, 0, 1, nil),
		newSkipPolicy: func() skip.SkipPolicy {
			return skip.NewDefaultSkipPolicyFactory().Create(0, nil)
		},
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &ChunkStep[I, O]{
		name:             name,
		reader:           reader,
		processor:        processor,
		writer:           writer,
		chunkSize:        chunkSize,
		jobRepository:    jobRepository,
		txManager:        txManager,
		txOptions:        o.txOptions,
		itemRetryPolicy:  o.itemRetryPolicy,
		chunkRetryPolicy: o.chunkRetryPolicy,
		newSkipPolicy:    o.newSkipPolicy,
		stepListeners:    o.stepListeners,
		chunkListeners:   o.chunkListeners,
		skipListeners:    o.skipListeners,
		retryListeners:   o.retryListeners,
		metricRecorder:   o.metricRecorder,
		tracer:           o.tracer,
	}, nil
}

// StepName returns the step name.
func (s *ChunkStep[I, O]) StepName() string {
	return s.name
}

// ChunkSize returns the commit interval.
func (s *ChunkStep[I, O]) ChunkSize() int {
	return s.chunkSize
}

// progress is the part of a StepExecution that only changes when a chunk commits.
type progress struct {
	readCount        int
	writeCount       int
	commitCount      int
	filterCount      int
	skipReadCount    int
	skipProcessCount int
	skipWriteCount   int
	version          int
	executionContext model.ExecutionContext
}

func captureProgress(se *model.StepExecution) progress {
	return progress{
		readCount:        se.ReadCount,
		writeCount:       se.WriteCount,
		commitCount:      se.CommitCount,
		filterCount:      se.FilterCount,
		skipReadCount:    se.SkipReadCount,
		skipProcessCount: se.SkipProcessCount,
		skipWriteCount:   se.SkipWriteCount,
		version:          se.Version,
		executionContext: se.ExecutionContext.Copy(),
	}
}

func (p progress) restore(se *model.StepExecution) {
	se.ReadCount = p.readCount
	se.WriteCount = p.writeCount
	se.CommitCount = p.commitCount
	se.FilterCount = p.filterCount
	se.SkipReadCount = p.skipReadCount
	se.SkipProcessCount = p.skipProcessCount
	se.SkipWriteCount = p.skipWriteCount
	se.Version = p.version
	se.ExecutionContext = p.executionContext.Copy()
}

// chunk is the result of the read/transform phase.
type chunk[O any] struct {
	items     []O
	read      int
	skipped   int
	exhausted bool
}

type outcome int

const (
	outcomeItem outcome = iota
	outcomeSkipped
	outcomeFiltered
	outcomeExhausted
)

// Execute runs the step until the reader is exhausted, a fatal error occurs or ctx is cancelled.
// It returns the failure cause of a FAILED step and the context error of a STOPPED one.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	logger.Infof("ChunkStep '%s' executing (chunk size %d).", s.name, s.chunkSize)
	ctx = port.WithStepExecution(ctx, stepExecution)

	if err := stepExecution.MarkAsStarted(); err != nil {
		return s.finish(ctx, stepExecution, exception.NewBatchError(s.name, "step execution cannot be started", err, false, false))
	}
	if err := s.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return s.finish(ctx, stepExecution, exception.NewRepositoryError(s.name, "failed to persist STARTED step execution", err))
	}
	s.notifyBeforeStep(ctx, stepExecution)

	if err := s.restoreCheckpoint(ctx, stepExecution); err != nil {
		return s.finish(ctx, stepExecution, err)
	}
	if err := s.reader.Open(ctx, stepExecution.ExecutionContext.Copy()); err != nil {
		return s.finish(ctx, stepExecution, asKind(s.name, "failed to open reader", err, exception.KindSourceRead))
	}
	if err := s.writer.Open(ctx, stepExecution.ExecutionContext.Copy()); err != nil {
		if closeErr := s.reader.Close(ctx); closeErr != nil {
			logger.Warnf("ChunkStep '%s': failed to close reader: %v", s.name, closeErr)
		}
		return s.finish(ctx, stepExecution, asKind(s.name, "failed to open writer", err, exception.KindSinkWrite))
	}

	skipPolicy := s.newSkipPolicy()
	var stepErr error
	for {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		done, err := s.processChunk(ctx, stepExecution, skipPolicy)
		if err != nil {
			stepErr = err
			break
		}
		if done {
			break
		}
	}

	if closeErr := s.close(ctx); closeErr != nil {
		logger.Warnf("ChunkStep '%s': failed to close resources: %v", s.name, closeErr)
		if stepErr == nil {
			stepErr = closeErr
		}
	}
	return s.finish(ctx, stepExecution, stepErr)
}

// restoreCheckpoint replaces the step execution context with the committed checkpoint, if any.
func (s *ChunkStep[I, O]) restoreCheckpoint(ctx context.Context, se *model.StepExecution) error {
	checkpoint, err := s.jobRepository.FindCheckpointData(ctx, se.ID)
	switch {
	case err == nil && checkpoint != nil:
		logger.Infof("ChunkStep '%s': restoring checkpoint saved at %s.", s.name, checkpoint.LastUpdated.Format(time.RFC3339))
		se.ExecutionContext = checkpoint.ExecutionContext.Copy()
	case err == nil || errors.Is(err, repository.ErrCheckpointDataNotFound):
		if len(se.ExecutionContext) > 0 {
			logger.Infof("ChunkStep '%s': resuming from the execution context of the previous run.", s.name)
		}
	default:
		return exception.NewRepositoryError(s.name, "failed to load checkpoint data", err)
	}
	if se.ExecutionContext == nil {
		se.ExecutionContext = model.NewExecutionContext()
	}
	return nil
}

// processChunk reads, transforms and flushes one chunk. It reports true once the reader is exhausted.
func (s *ChunkStep[I, O]) processChunk(ctx context.Context, se *model.StepExecution, skipPolicy skip.SkipPolicy) (bool, error) {
	before := captureProgress(se)

	t, err := s.txManager.Begin(ctx, s.txOptions)
	if err != nil {
		return false, exception.NewRepositoryError(s.name, "failed to begin chunk transaction", err)
	}
	txCtx := tx.WithTx(ctx, t)
	s.notifyBeforeChunk(txCtx, se)

	c, err := s.readChunk(txCtx, se, skipPolicy)
	if err != nil {
		s.rollback(ctx, t, se, before)
		s.notifyChunkError(ctx, se, err)
		return false, err
	}
	if c.read == 0 && c.skipped == 0 {
		if rbErr := s.txManager.Rollback(t); rbErr != nil {
			logger.Warnf("ChunkStep '%s': failed to release empty chunk transaction: %v", s.name, rbErr)
		}
		return true, nil
	}

	afterRead := captureProgress(se)
	for attempt := 1; ; attempt++ {
		err = s.writeAndCommit(txCtx, t, se, c.items)
		if err == nil {
			break
		}
		s.rollback(ctx, t, se, afterRead)
		if !s.chunkRetryPolicy.ShouldRetry(attempt, err) {
			before.restore(se)
			s.notifyChunkError(ctx, se, err)
			return false, err
		}
		logger.Warnf("ChunkStep '%s': chunk flush failed (attempt %d/%d), retrying: %v", s.name, attempt, s.chunkRetryPolicy.MaxAttempts(), err)
		s.notifyRetry(ctx, "write", attempt+1, err)
		if werr := retry.Sleep(ctx, s.chunkRetryPolicy.Backoff(attempt)); werr != nil {
			before.restore(se)
			return false, werr
		}
		if t, err = s.txManager.Begin(ctx, s.txOptions); err != nil {
			before.restore(se)
			return false, exception.NewRepositoryError(s.name, "failed to begin chunk transaction", err)
		}
		txCtx = tx.WithTx(ctx, t)
	}

	s.metricRecorder.RecordChunkCommit(ctx, s.name, len(c.items))
	s.notifyAfterChunk(ctx, se)
	logger.Debugf("ChunkStep '%s': chunk committed. %s", s.name, se.DebugString())
	return c.exhausted, nil
}

// readChunk reads and transforms until chunkSize items were read or the reader is exhausted.
// Skipped reads do not count towards the chunk size.
func (s *ChunkStep[I, O]) readChunk(ctx context.Context, se *model.StepExecution, skipPolicy skip.SkipPolicy) (chunk[O], error) {
	c := chunk[O]{items: make([]O, 0, s.chunkSize)}
	for c.read < s.chunkSize {
		if err := ctx.Err(); err != nil {
			return c, err
		}

		in, res, err := s.readItem(ctx, se, skipPolicy)
		if err != nil {
			return c, err
		}
		switch res {
		case outcomeExhausted:
			c.exhausted = true
			return c, nil
		case outcomeSkipped:
			c.skipped++
			continue
		}
		c.read++
		se.ReadCount++

		out, res, err := s.processItem(ctx, se, skipPolicy, in)
		if err != nil {
			return c, err
		}
		switch res {
		case outcomeSkipped:
			c.skipped++
		case outcomeFiltered:
			se.FilterCount++
		default:
			c.items = append(c.items, out)
		}
	}
	return c, nil
}

func (s *ChunkStep[I, O]) readItem(ctx context.Context, se *model.StepExecution, skipPolicy skip.SkipPolicy) (I, outcome, error) {
	var item I
	var readErr error
	for attempt := 1; ; attempt++ {
		item, readErr = s.reader.Read(ctx)
		if readErr == nil {
			s.metricRecorder.RecordItemRead(ctx, s.name)
			return item, outcomeItem, nil
		}
		if errors.Is(readErr, port.ErrNoMoreItems) || errors.Is(readErr, io.EOF) {
			return item, outcomeExhausted, nil
		}
		readErr = asKind(s.name, "failed to read item", readErr, exception.KindSourceRead)
		if !s.itemRetryPolicy.ShouldRetry(attempt, readErr) {
			break
		}
		logger.Warnf("ChunkStep '%s': read failed (attempt %d/%d), retrying: %v", s.name, attempt, s.itemRetryPolicy.MaxAttempts(), readErr)
		s.notifyRetry(ctx, "read", attempt+1, readErr)
		if err := retry.Sleep(ctx, s.itemRetryPolicy.Backoff(attempt)); err != nil {
			return item, outcomeItem, err
		}
	}

	if skipPolicy.ShouldSkip(readErr) {
		skipPolicy.IncrementSkipCount()
		se.SkipReadCount++
		logger.Warnf("ChunkStep '%s': read skipped (%d/%d): %v", s.name, skipPolicy.SkipCount(), skipPolicy.SkipLimit(), readErr)
		s.notifySkipRead(ctx, readErr)
		return item, outcomeSkipped, nil
	}
	return item, outcomeItem, s.fatalItemError(skipPolicy, readErr)
}

func (s *ChunkStep[I, O]) processItem(ctx context.Context, se *model.StepExecution, skipPolicy skip.SkipPolicy, item I) (O, outcome, error) {
	var out O
	var processErr error
	for attempt := 1; ; attempt++ {
		out, processErr = s.processor.Process(ctx, item)
		if processErr == nil {
			s.metricRecorder.RecordItemProcess(ctx, s.name)
			if isNil(out) {
				return out, outcomeFiltered, nil
			}
			return out, outcomeItem, nil
		}
		if errors.Is(processErr, port.ErrFiltered) {
			return out, outcomeFiltered, nil
		}
		processErr = asKind(s.name, "failed to transform item", processErr, exception.KindTransform)
		if !s.itemRetryPolicy.ShouldRetry(attempt, processErr) {
			break
		}
		logger.Warnf("ChunkStep '%s': transform failed (attempt %d/%d), retrying: %v", s.name, attempt, s.itemRetryPolicy.MaxAttempts(), processErr)
		s.notifyRetry(ctx, "process", attempt+1, processErr)
		if err := retry.Sleep(ctx, s.itemRetryPolicy.Backoff(attempt)); err != nil {
			return out, outcomeItem, err
		}
	}

	if skipPolicy.ShouldSkip(processErr) {
		skipPolicy.IncrementSkipCount()
		se.SkipProcessCount++
		logger.Warnf("ChunkStep '%s': item skipped in transform (%d/%d): %v", s.name, skipPolicy.SkipCount(), skipPolicy.SkipLimit(), processErr)
		s.notifySkipProcess(ctx, item, processErr)
		return out, outcomeSkipped, nil
	}
	return out, outcomeItem, s.fatalItemError(skipPolicy, processErr)
}

// fatalItemError reports a skippable error as a skip limit violation.
func (s *ChunkStep[I, O]) fatalItemError(skipPolicy skip.SkipPolicy, err error) error {
	if skipPolicy.IsSkippable(err) {
		return exception.NewBatchError(s.name, fmt.Sprintf("skip limit of %d exceeded", skipPolicy.SkipLimit()), err, false, false)
	}
	return err
}

// writeAndCommit flushes items and saves the step progress in transaction t, then commits.
func (s *ChunkStep[I, O]) writeAndCommit(ctx context.Context, t tx.Tx, se *model.StepExecution, items []O) error {
	if len(items) > 0 {
		if err := s.writer.Write(ctx, t, items); err != nil {
			return asKind(s.name, "failed to write chunk", err, exception.KindSinkWrite)
		}
		s.metricRecorder.RecordItemWrite(ctx, s.name, len(items))
	}

	if err := s.mergeExecutionContext(ctx, se); err != nil {
		return err
	}
	se.WriteCount += len(items)
	se.CommitCount++
	se.LastUpdated = time.Now()

	if err := s.jobRepository.SaveCheckpointData(ctx, model.NewCheckpointData(se)); err != nil {
		return asKind(s.name, "failed to save checkpoint", err, exception.KindRepository)
	}
	if err := s.jobRepository.UpdateStepExecution(ctx, se); err != nil {
		return asKind(s.name, "failed to save step progress", err, exception.KindRepository)
	}
	if err := s.txManager.Commit(t); err != nil {
		return asKind(s.name, "failed to commit chunk", err, exception.KindSinkWrite)
	}
	return nil
}

// mergeExecutionContext copies the reader and writer positions into the step execution context.
func (s *ChunkStep[I, O]) mergeExecutionContext(ctx context.Context, se *model.StepExecution) error {
	readerEC, err := s.reader.GetExecutionContext(ctx)
	if err != nil {
		return asKind(s.name, "failed to get reader execution context", err, exception.KindSourceRead)
	}
	writerEC, err := s.writer.GetExecutionContext(ctx)
	if err != nil {
		return asKind(s.name, "failed to get writer execution context", err, exception.KindSinkWrite)
	}
	if se.ExecutionContext == nil {
		se.ExecutionContext = model.NewExecutionContext()
	}
	se.ExecutionContext.Merge(readerEC)
	se.ExecutionContext.Merge(writerEC)
	return nil
}

// rollback rolls t back and restores the step execution to p.
func (s *ChunkStep[I, O]) rollback(ctx context.Context, t tx.Tx, se *model.StepExecution, p progress) {
	if err := s.txManager.Rollback(t); err != nil {
		logger.Errorf("ChunkStep '%s': rollback failed: %v", s.name, err)
	}
	p.restore(se)
	se.RollbackCount++
	s.metricRecorder.RecordChunkRollback(ctx, s.name)
}

func (s *ChunkStep[I, O]) close(ctx context.Context) error {
	var result *multierror.Error
	if err := s.reader.Close(ctx); err != nil {
		result = multierror.Append(result, asKind(s.name, "failed to close reader", err, exception.KindSourceRead))
	}
	if err := s.writer.Close(ctx); err != nil {
		result = multierror.Append(result, asKind(s.name, "failed to close writer", err, exception.KindSinkWrite))
	}
	return result.ErrorOrNil()
}

// finish moves the step execution to its terminal status and persists it.
func (s *ChunkStep[I, O]) finish(ctx context.Context, se *model.StepExecution, stepErr error) error {
	persistCtx := context.WithoutCancel(ctx)
	switch {
	case stepErr == nil:
		if err := se.MarkAsCompleted(); err != nil {
			se.MarkAsFailed(err)
			stepErr = err
		}
	case ctx.Err() != nil || errors.Is(stepErr, context.Canceled):
		logger.Warnf("ChunkStep '%s' stopped: %v", s.name, stepErr)
		if err := se.MarkAsStopped(); err != nil {
			se.MarkAsFailed(stepErr)
		}
	default:
		logger.Errorf("ChunkStep '%s' failed: %v", s.name, stepErr)
		s.tracer.RecordError(ctx, s.name, stepErr)
		se.MarkAsFailed(stepErr)
	}

	s.notifyAfterStep(persistCtx, se)
	if err := s.jobRepository.UpdateStepExecution(persistCtx, se); err != nil {
		logger.Errorf("ChunkStep '%s': failed to persist final step execution: %v", s.name, err)
		if stepErr == nil {
			stepErr = exception.NewRepositoryError(s.name, "failed to persist final step execution", err)
			se.MarkAsFailed(stepErr)
		}
	}
	logger.Infof("ChunkStep '%s' finished. %s", s.name, se.DebugString())
	return stepErr
}

// asKind wraps err in a BatchError of kind unless it already carries a kind.
func asKind(module, message string, err error, kind exception.ErrorKind) error {
	if exception.KindOf(err) != exception.KindUnknown {
		return err
	}
	switch kind {
	case exception.KindSourceRead:
		return exception.NewSourceReadError(module, message, err, false, false)
	case exception.KindTransform:
		return exception.NewTransformError(module, message, err, false, false)
	case exception.KindSinkWrite:
		return exception.NewSinkWriteError(module, message, err, false)
	default:
		return exception.NewRepositoryError(module, message, err)
	}
}

// isNil reports whether v is nil, including typed nil pointers, maps and slices.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// --- Listener notifiers ---

func (s *ChunkStep[I, O]) notifyBeforeStep(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, se)
	}
}

func (s *ChunkStep[I, O]) notifyAfterStep(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.stepListeners {
		l.AfterStep(ctx, se)
	}
}

func (s *ChunkStep[I, O]) notifyBeforeChunk(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.chunkListeners {
		l.BeforeChunk(ctx, se)
	}
}

func (s *ChunkStep[I, O]) notifyAfterChunk(ctx context.Context, se *model.StepExecution) {
	for _, l := range s.chunkListeners {
		l.AfterChunk(ctx, se)
	}
}

func (s *ChunkStep[I, O]) notifyChunkError(ctx context.Context, se *model.StepExecution, err error) {
	for _, l := range s.chunkListeners {
		l.AfterChunkError(ctx, se, err)
	}
}

func (s *ChunkStep[I, O]) notifyRetry(ctx context.Context, operation string, attempt int, err error) {
	s.tracer.RecordError(ctx, s.name, err)
	s.metricRecorder.RecordItemRetry(ctx, s.name, exception.KindOf(err).String())
	for _, l := range s.retryListeners {
		l.OnRetry(ctx, operation, attempt, err)
	}
}

func (s *ChunkStep[I, O]) notifySkipRead(ctx context.Context, err error) {
	s.tracer.RecordError(ctx, s.name, err)
	s.metricRecorder.RecordItemSkip(ctx, s.name, exception.KindOf(err).String())
	for _, l := range s.skipListeners {
		l.OnSkipInRead(ctx, err)
	}
}

func (s *ChunkStep[I, O]) notifySkipProcess(ctx context.Context, item I, err error) {
	s.tracer.RecordError(ctx, s.name, err)
	s.metricRecorder.RecordItemSkip(ctx, s.name, exception.KindOf(err).String())
	for _, l := range s.skipListeners {
		l.OnSkipInProcess(ctx, item, err)
	}
}
