package item_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/item"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/retry"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/test"
)

type product struct {
	Name  string
	Price int
}

func products(names ...string) []product {
	items := make([]product, len(names))
	for i, n := range names {
		items[i] = product{Name: n, Price: 10 * (i + 1)}
	}
	return items
}

func ints(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

var identity = test.FuncProcessor[int, int](func(_ context.Context, i int) (int, error) { return i, nil })

// newStepExecution saves a running job execution with one step execution.
func newStepExecution(t *testing.T, repo repository.JobRepository) (*model.JobExecution, *model.StepExecution) {
	t.Helper()
	je := test.SaveTestExecution(t, repo, "testJob", test.NewTestJobParameters(map[string]interface{}{"run.id": int64(1)}), "step1")
	return je, je.StepExecutions[0]
}

func newIntStep(t *testing.T, repo repository.JobRepository, reader port.ItemReader[int], processor port.ItemProcessor[int, int], writer port.ItemWriter[int], chunkSize int, opts ...item.Option) *item.ChunkStep[int, int] {
	t.Helper()
	step, err := item.NewChunkStep[int, int]("step1", reader, processor, writer, chunkSize, repo, tx.NewResourcelessTransactionManager(), opts...)
	require.NoError(t, err)
	return step
}

func TestNewChunkStep_Validation(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	txm := tx.NewResourcelessTransactionManager()
	reader := test.NewSliceReader[int]()
	writer := test.NewRecordingWriter[int]()

	_, err := item.NewChunkStep[int, int]("", reader, identity, writer, 1, repo, txm)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
	_, err = item.NewChunkStep[int, int]("s", reader, identity, writer, 0, repo, txm)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
	_, err = item.NewChunkStep[int, int]("s", nil, identity, writer, 1, repo, txm)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))
	_, err = item.NewChunkStep[int, int]("s", reader, identity, writer, 1, nil, txm)
	assert.True(t, exception.IsKind(err, exception.KindConfiguration))

	step, err := item.NewChunkStep[int, int]("s", reader, identity, writer, 4, repo, txm)
	require.NoError(t, err)
	assert.Equal(t, "s", step.StepName())
	assert.Equal(t, 4, step.ChunkSize())
}

func TestChunkStep_FlushesInChunks(t *testing.T) {
	tests := []struct {
		items, chunkSize int
		wantSizes        []int
	}{
		{items: 0, chunkSize: 3, wantSizes: nil},
		{items: 1, chunkSize: 3, wantSizes: []int{1}},
		{items: 6, chunkSize: 3, wantSizes: []int{3, 3}},
		{items: 7, chunkSize: 3, wantSizes: []int{3, 3, 1}},
		{items: 10, chunkSize: 1, wantSizes: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		repo := inmemory.NewInMemoryJobRepository()
		je, se := newStepExecution(t, repo)
		reader := test.NewSliceReader(ints(tt.items)...)
		writer := test.NewRecordingWriter[int]()
		step := newIntStep(t, repo, reader, identity, writer, tt.chunkSize)

		require.NoError(t, step.Execute(context.Background(), je, se))

		var sizes []int
		for _, c := range writer.Chunks() {
			sizes = append(sizes, len(c))
		}
		assert.Equal(t, tt.wantSizes, sizes, "%d items, chunk %d", tt.items, tt.chunkSize)
		if tt.items > 0 {
			assert.Equal(t, ints(tt.items), writer.Items(), "order is preserved across flushes")
		}
		assert.Equal(t, model.BatchStatusCompleted, se.Status)
		assert.Equal(t, tt.items, se.ReadCount)
		assert.Equal(t, tt.items, se.WriteCount)
		assert.Equal(t, len(tt.wantSizes), se.CommitCount)
		assert.Equal(t, 0, se.RollbackCount)
		assert.Equal(t, 1, reader.Closed)
		assert.Equal(t, 1, writer.Closed)
	}
}

func TestChunkStep_IncrementExample(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	reader := test.NewSliceReader(products("A", "B", "C", "D", "E")...)
	increment := test.FuncProcessor[product, product](func(_ context.Context, p product) (product, error) {
		p.Price += 1000
		return p, nil
	})
	writer := test.NewRecordingWriter[product]()
	step, err := item.NewChunkStep[product, product]("step1", reader, increment, writer, 2, repo, tx.NewResourcelessTransactionManager())
	require.NoError(t, err)

	require.NoError(t, step.Execute(context.Background(), je, se))

	var batches [][]string
	for _, c := range writer.Chunks() {
		var names []string
		for _, p := range c {
			names = append(names, p.Name)
		}
		batches = append(batches, names)
	}
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, batches)
	assert.Equal(t, 1010, writer.Items()[0].Price)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Equal(t, 5, stored.WriteCount)
	assert.Equal(t, 3, stored.CommitCount)

	checkpoint, err := repo.FindCheckpointData(context.Background(), se.ID)
	require.NoError(t, err)
	pos, _ := checkpoint.ExecutionContext.GetInt(test.PositionKey)
	assert.Equal(t, 5, pos)
}

func TestChunkStep_RestartResumesAfterLastCommittedChunk(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	writer := test.NewRecordingWriter[int]()
	writer.FailOn = func(call int, _ []int) error {
		if call == 3 {
			return errors.New("disk full")
		}
		return nil
	}
	step := newIntStep(t, repo, test.NewSliceReader(ints(10)...), identity, writer, 3)

	err := step.Execute(ctx, je, se)
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindSinkWrite))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, writer.Items())
	assert.Equal(t, 6, se.ReadCount, "counters reflect the committed chunks")
	assert.Equal(t, 6, se.WriteCount)
	assert.Equal(t, 1, se.RollbackCount)
	assert.NotEmpty(t, se.Failures)

	checkpoint, err := repo.FindCheckpointData(ctx, se.ID)
	require.NoError(t, err)

	restart := model.NewRestartExecution(je)
	require.NoError(t, repo.SaveJobExecution(ctx, restart))
	resumed := restart.StepExecution("step1")
	resumed.ExecutionContext = checkpoint.ExecutionContext.Copy()
	require.NoError(t, repo.SaveStepExecution(ctx, resumed))

	writer.FailOn = nil
	reader := test.NewSliceReader(ints(10)...)
	step = newIntStep(t, repo, reader, identity, writer, 3)
	require.NoError(t, step.Execute(ctx, restart, resumed))

	assert.Equal(t, model.BatchStatusCompleted, resumed.Status)
	assert.Equal(t, ints(10), writer.Items(), "final sink equals an uninterrupted run")
	assert.Equal(t, 4, resumed.ReadCount)
	assert.Equal(t, 4, resumed.WriteCount)
}

func TestChunkStep_RestoresCommittedCheckpoint(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	se.ExecutionContext.Put(test.PositionKey, 1)
	require.NoError(t, repo.SaveCheckpointData(ctx, &model.CheckpointData{
		StepExecutionID:  se.ID,
		ExecutionContext: test.NewTestExecutionContext(map[string]interface{}{test.PositionKey: 3}),
	}))
	writer := test.NewRecordingWriter[int]()
	step := newIntStep(t, repo, test.NewSliceReader(ints(5)...), identity, writer, 2)

	require.NoError(t, step.Execute(ctx, je, se))

	assert.Equal(t, []int{3, 4}, writer.Items(), "the committed checkpoint wins over the execution context")
	pos, _ := writer.OpenedWith().GetInt(test.PositionKey)
	assert.Equal(t, 3, pos)
}

func TestChunkStep_SkipLimit(t *testing.T) {
	badRecords := func() map[int]error {
		return map[int]error{2: errors.New("bad line 2"), 4: errors.New("bad line 4"), 6: errors.New("bad line 6")}
	}

	t.Run("within limit", func(t *testing.T) {
		repo := inmemory.NewInMemoryJobRepository()
		je, se := newStepExecution(t, repo)
		reader := test.NewSliceReader(ints(10)...)
		reader.BadRecords = badRecords()
		writer := test.NewRecordingWriter[int]()
		skips := &recordingSkipListener{}
		step := newIntStep(t, repo, reader, identity, writer, 3,
			item.WithSkipLimit(3, "SourceReadError"), item.WithSkipListeners(skips))

		require.NoError(t, step.Execute(context.Background(), je, se))

		assert.Equal(t, model.BatchStatusCompleted, se.Status)
		assert.Equal(t, []int{0, 1, 3, 5, 7, 8, 9}, writer.Items())
		assert.Equal(t, 3, se.SkipReadCount)
		assert.Equal(t, 7, se.WriteCount)
		assert.Equal(t, 3, skips.read)
		assert.Empty(t, se.Failures, "skips are not failures")
	})

	t.Run("limit exceeded", func(t *testing.T) {
		repo := inmemory.NewInMemoryJobRepository()
		je, se := newStepExecution(t, repo)
		reader := test.NewSliceReader(ints(10)...)
		reader.BadRecords = badRecords()
		writer := test.NewRecordingWriter[int]()
		step := newIntStep(t, repo, reader, identity, writer, 3, item.WithSkipLimit(2, "SourceReadError"))

		err := step.Execute(context.Background(), je, se)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "skip limit of 2 exceeded")
		assert.Equal(t, model.BatchStatusFailed, se.Status)
		assert.Equal(t, []int{0, 1, 3}, writer.Items(), "the chunk holding the third failure is not flushed")
		assert.Equal(t, 1, se.SkipReadCount)
	})

	t.Run("not skippable by default", func(t *testing.T) {
		repo := inmemory.NewInMemoryJobRepository()
		je, se := newStepExecution(t, repo)
		reader := test.NewSliceReader(ints(10)...)
		reader.BadRecords = badRecords()
		step := newIntStep(t, repo, reader, identity, test.NewRecordingWriter[int](), 3)

		err := step.Execute(context.Background(), je, se)

		require.Error(t, err)
		assert.True(t, exception.IsKind(err, exception.KindSourceRead))
		assert.Equal(t, model.BatchStatusFailed, se.Status)
	})
}

func TestChunkStep_TransformSkipAndFilter(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	processor := test.FuncProcessor[int, int](func(_ context.Context, i int) (int, error) {
		switch {
		case i == 5:
			return 0, exception.NewTransformError("test", "negative price", nil, true, false)
		case i%3 == 0:
			return 0, port.ErrFiltered
		}
		return i * 10, nil
	})
	writer := test.NewRecordingWriter[int]()
	skips := &recordingSkipListener{}
	step := newIntStep(t, repo, test.NewSliceReader(ints(8)...), processor, writer, 4,
		item.WithSkipLimit(1), item.WithSkipListeners(skips))

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, []int{10, 20, 40, 70}, writer.Items())
	assert.Equal(t, 8, se.ReadCount)
	assert.Equal(t, 3, se.FilterCount)
	assert.Equal(t, 1, se.SkipProcessCount)
	assert.Equal(t, 4, se.WriteCount)
	assert.Equal(t, []interface{}{5}, skips.processed)
}

func TestChunkStep_NilOutputIsFiltered(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	processor := test.FuncProcessor[int, *int](func(_ context.Context, i int) (*int, error) {
		if i%2 == 1 {
			return nil, nil
		}
		return &i, nil
	})
	writer := test.NewRecordingWriter[*int]()
	step, err := item.NewChunkStep[int, *int]("step1", test.NewSliceReader(ints(4)...), processor, writer, 10, repo, tx.NewResourcelessTransactionManager())
	require.NoError(t, err)

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Len(t, writer.Items(), 2)
	assert.Equal(t, 2, se.FilterCount)
}

func TestChunkStep_ChunkRetry(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	writer := test.NewRecordingWriter[int]()
	writer.FailOn = func(call int, _ []int) error {
		if call == 2 {
			return exception.NewSinkWriteError("test", "connection reset", nil, true)
		}
		return nil
	}
	retries := &recordingRetryListener{}
	step := newIntStep(t, repo, test.NewSliceReader(ints(5)...), identity, writer, 2,
		item.WithChunkRetryPolicy(retry.NewDefaultRetryPolicyFactory().Create(3, 0, 0, 1, nil)),
		item.WithRetryListeners(retries))

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, writer.Chunks(), "the buffered chunk is written again")
	assert.Equal(t, 4, writer.Calls())
	assert.Equal(t, 1, se.RollbackCount)
	assert.Equal(t, 3, se.CommitCount)
	assert.Equal(t, 5, se.WriteCount)
	assert.Equal(t, []string{"write"}, retries.operations)
}

func TestChunkStep_ChunkRetryExhausted(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	writer := test.NewRecordingWriter[int]()
	writer.FailOn = func(call int, _ []int) error {
		if call >= 2 {
			return exception.NewSinkWriteError("test", "connection reset", nil, true)
		}
		return nil
	}
	step := newIntStep(t, repo, test.NewSliceReader(ints(5)...), identity, writer, 2,
		item.WithChunkRetryPolicy(retry.NewDefaultRetryPolicyFactory().Create(2, 0, 0, 1, nil)))

	err := step.Execute(context.Background(), je, se)

	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 3, writer.Calls())
	assert.Equal(t, 2, se.RollbackCount)
	assert.Equal(t, 2, se.WriteCount)
}

func TestChunkStep_ItemRetry(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	reader := test.NewSliceReader(ints(4)...)
	reader.Transient = map[int][]error{1: {errors.New("timeout"), errors.New("timeout")}}
	writer := test.NewRecordingWriter[int]()
	retries := &recordingRetryListener{}
	step := newIntStep(t, repo, reader, identity, writer, 4,
		item.WithItemRetryPolicy(retry.NewDefaultRetryPolicyFactory().Create(3, 0, 0, 1, []string{"SourceReadError"})),
		item.WithRetryListeners(retries))

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, ints(4), writer.Items())
	assert.Equal(t, []string{"read", "read"}, retries.operations)
	assert.Equal(t, []int{2, 3}, retries.attempts)
}

func TestChunkStep_CommitFailureRollsBack(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	writer := test.NewRecordingWriter[int]()
	txm := &test.FailingCommitManager{TransactionManager: tx.NewResourcelessTransactionManager(), Failures: 1, Err: errors.New("commit refused")}
	step, err := item.NewChunkStep[int, int]("step1", test.NewSliceReader(ints(3)...), identity, writer, 2, repo, txm,
		item.WithChunkRetryPolicy(retry.NewDefaultRetryPolicyFactory().Create(2, 0, 0, 1, []string{"SinkWriteError"})))
	require.NoError(t, err)

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, [][]int{{0, 1}, {2}}, writer.Chunks(), "a rolled back chunk is never recorded")
	assert.Equal(t, 3, txm.Commits())

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, se.Version, stored.Version)
	assert.Equal(t, 3, stored.WriteCount)
}

type failingCheckpointRepository struct {
	repository.JobRepository
}

func (r *failingCheckpointRepository) SaveCheckpointData(context.Context, *model.CheckpointData) error {
	return errors.New("database is locked")
}

func TestChunkStep_RepositoryErrorIsFatal(t *testing.T) {
	repo := &failingCheckpointRepository{JobRepository: inmemory.NewInMemoryJobRepository()}
	je, se := newStepExecution(t, repo)
	writer := test.NewRecordingWriter[int]()
	step := newIntStep(t, repo, test.NewSliceReader(ints(3)...), identity, writer, 2, item.WithPolicies(chunkRetryAll()))

	err := step.Execute(context.Background(), je, se)

	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindRepository))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, 1, writer.Calls(), "repository errors are not retried")
	assert.Empty(t, writer.Items())
}

func TestChunkStep_CancelStops(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := test.FuncProcessor[int, int](func(_ context.Context, i int) (int, error) {
		if i == 2 {
			cancel()
		}
		return i, nil
	})
	writer := test.NewRecordingWriter[int]()
	step := newIntStep(t, repo, test.NewSliceReader(ints(10)...), processor, writer, 2)

	err := step.Execute(ctx, je, se)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, model.ExitStatusStopped, se.ExitStatus)
	assert.Equal(t, []int{0, 1}, writer.Items())

	stored, err := repo.FindStepExecutionByID(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
}

func TestChunkStep_Listeners(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je, se := newStepExecution(t, repo)
	chunks := &recordingChunkListener{}
	steps := &recordingStepListener{}
	step := newIntStep(t, repo, test.NewSliceReader(ints(5)...), identity, test.NewRecordingWriter[int](), 2,
		item.WithChunkListeners(chunks), item.WithStepListeners(steps))

	require.NoError(t, step.Execute(context.Background(), je, se))

	assert.Equal(t, 3, chunks.after)
	assert.Equal(t, 0, chunks.errors)
	assert.Equal(t, []model.BatchStatus{model.BatchStatusStarted}, steps.before)
	assert.Equal(t, []model.BatchStatus{model.BatchStatusCompleted}, steps.after)
}

func chunkRetryAll() config.BatchConfig {
	cfg := config.NewConfig().Batch
	cfg.ChunkRetry.MaxAttempts = 3
	cfg.ChunkRetry.InitialInterval = 0
	cfg.ChunkRetry.RetryableExceptions = []string{"RepositoryError", "SinkWriteError"}
	return cfg
}

type recordingSkipListener struct {
	read      int
	processed []interface{}
}

func (l *recordingSkipListener) OnSkipInRead(context.Context, error) { l.read++ }

func (l *recordingSkipListener) OnSkipInProcess(_ context.Context, item interface{}, _ error) {
	l.processed = append(l.processed, item)
}

type recordingRetryListener struct {
	operations []string
	attempts   []int
}

func (l *recordingRetryListener) OnRetry(_ context.Context, operation string, attempt int, _ error) {
	l.operations = append(l.operations, operation)
	l.attempts = append(l.attempts, attempt)
}

type recordingChunkListener struct {
	before, after, errors int
}

func (l *recordingChunkListener) BeforeChunk(context.Context, *model.StepExecution) { l.before++ }
func (l *recordingChunkListener) AfterChunk(context.Context, *model.StepExecution)  { l.after++ }
func (l *recordingChunkListener) AfterChunkError(context.Context, *model.StepExecution, error) {
	l.errors++
}

type recordingStepListener struct {
	before, after []model.BatchStatus
}

func (l *recordingStepListener) BeforeStep(_ context.Context, se *model.StepExecution) {
	l.before = append(l.before, se.Status)
}

func (l *recordingStepListener) AfterStep(_ context.Context, se *model.StepExecution) {
	l.after = append(l.after, se.Status)
}
