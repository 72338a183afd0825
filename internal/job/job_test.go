package job_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/internal/job"
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
	gormadapter "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm"
	gormsqlite "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/metrics"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/support/incrementer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/tx"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener/logging"
)

// harness wires the job constructors the way the application module does, on an in-memory
// repository and a sqlite "metadata" database in a temporary directory.
type harness struct {
	dir      string
	cfg      *config.Config
	resolver *gormadapter.GormDBConnectionResolver
	params   job.Params
	launcher *usecase.SimpleJobLauncher
}

func newHarness(t *testing.T, jobs map[string]map[string]interface{}) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Batch.Databases["metadata"] = dbconfig.DatabaseConfig{
		Type:     gormsqlite.DBType,
		Database: filepath.Join(dir, "batch.db"),
	}
	for name, props := range jobs {
		cfg.Batch.Jobs[name] = props
	}
	resolver := gormadapter.NewResolver(cfg, gormsqlite.NewProvider(cfg))
	t.Cleanup(func() { _ = resolver.CloseAll() })

	repo := inmemory.NewInMemoryJobRepository()
	return &harness{
		dir:      dir,
		cfg:      cfg,
		resolver: resolver,
		params: job.Params{
			Config:               cfg,
			JobRepository:        repo,
			TxManager:            tx.NewResourcelessTransactionManager(),
			DBResolver:           resolver,
			MetricRecorder:       metrics.NewNoOpMetricRecorder(),
			Tracer:               metrics.NewNoOpTracer(),
			Logging:              logging.NewLoggingListener(),
			RunIDIncrementer:     incrementer.NewRunIDIncrementer(incrementer.DefaultRunIDKey),
			TimestampIncrementer: incrementer.NewTimestampIncrementer(incrementer.DefaultTimestampKey),
		},
		launcher: usecase.NewSimpleJobLauncher(repo, cfg.Batch.Restart),
	}
}

func (h *harness) launch(t *testing.T, j port.Job, params model.JobParameters, opts ...usecase.LaunchOption) *model.JobExecution {
	t.Helper()
	je, err := h.launcher.Launch(context.Background(), j, params, opts...)
	require.NoError(t, err)
	require.NotNil(t, je)
	return je
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestHelloJob(t *testing.T) {
	h := newHarness(t, nil)
	j, err := job.NewHelloJob(h.params)
	require.NoError(t, err)
	assert.Equal(t, job.HelloJobName, j.JobName())

	params := model.NewJobParameters()
	params.Put("message", "nice to meet you")
	je := h.launch(t, j, params)

	assert.Equal(t, model.BatchStatusCompleted, je.Status)
	se := je.StepExecution(job.HelloStepName)
	require.NotNil(t, se)
	msg, _ := se.ExecutionContext.GetString("hello.message")
	assert.Equal(t, "nice to meet you", msg)
}

func TestHelloJob_FreshRunsStartNewInstances(t *testing.T) {
	h := newHarness(t, nil)
	j, err := job.NewHelloJob(h.params)
	require.NoError(t, err)

	first := h.launch(t, j, model.NewJobParameters(), usecase.WithFreshRun())
	second := h.launch(t, j, model.NewJobParameters(), usecase.WithFreshRun())

	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	_, ok := second.Parameters.GetInt64(incrementer.DefaultTimestampKey)
	assert.True(t, ok)
}
