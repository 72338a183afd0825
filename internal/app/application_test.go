package app_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/internal/app"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

const configTemplate = `
batch:
  repository:
    type: %s
    database: metadata
    auto_migrate: true
  databases:
    metadata:
      type: sqlite
      database: %s
  metrics:
    enabled: true
    backend: prometheus
    textfile_path: %s
  system:
    logging:
      level: WARN
  jobs:
    fileJob:
      input_path: %s
      output_path: %s
`

type fixture struct {
	dir    string
	input  string
	output string
	prom   string
	config config.EmbeddedConfig
}

func newFixture(t *testing.T, repositoryType string, inputLines ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		input:  filepath.Join(dir, "sample-product.csv"),
		output: filepath.Join(dir, "output", "output-product.csv"),
		prom:   filepath.Join(dir, "metrics.prom"),
	}
	require.NoError(t, os.WriteFile(f.input, []byte(strings.Join(inputLines, "\n")+"\n"), 0o644))
	f.config = config.EmbeddedConfig(fmt.Sprintf(configTemplate,
		repositoryType, filepath.Join(dir, "batch.db"), f.prom, f.input, f.output))
	return f
}

func (f *fixture) run(t *testing.T, opts app.Options) int {
	t.Helper()
	if opts.Params.Params == nil {
		opts.Params = model.NewJobParameters()
	}
	return app.RunApplication(context.Background(), filepath.Join(f.dir, ".env"), f.config,
		app.DBProviderOptions([]string{"sqlite"}), opts)
}

func TestRunApplication_HelloJob(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price")
	params, err := app.ParseJobParameters([]string{"message=hi"})
	require.NoError(t, err)

	assert.Equal(t, app.ExitCompleted, f.run(t, app.Options{JobName: "helloJob", Params: params}))
	assert.FileExists(t, f.prom)
}

func TestRunApplication_FileJob(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price", "1,desk,250", "2,chair,85.5", "3,lamp,10")

	require.Equal(t, app.ExitCompleted, f.run(t, app.Options{JobName: "fileJob", Fresh: true}))

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, "1,desk,1250\n2,chair,1085.5\n3,lamp,1010\n", string(data))
}

func TestRunApplication_FailedJobExitsWithOne(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price", "1,desk,250", "x,broken,1")

	assert.Equal(t, app.ExitFailed, f.run(t, app.Options{JobName: "fileJob", Fresh: true}))
}

func TestRunApplication_UnknownJob(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price")

	assert.Equal(t, app.ExitUsage, f.run(t, app.Options{JobName: "nope"}))
}

func TestRunApplication_InvalidConfiguration(t *testing.T) {
	f := newFixture(t, "cassandra", "id,name,price")

	assert.Equal(t, app.ExitUsage, f.run(t, app.Options{JobName: "helloJob"}))
}

func TestRunApplication_List(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price")

	assert.Equal(t, app.ExitCompleted, f.run(t, app.Options{List: true}))
}

func TestRunApplication_JdbcJobOnSQLRepository(t *testing.T) {
	f := newFixture(t, "sql", "id,name,price")

	require.Equal(t, app.ExitCompleted, f.run(t, app.Options{JobName: "jobjdbc"}))
	// The completed run is returned as is on relaunch.
	assert.Equal(t, app.ExitCompleted, f.run(t, app.Options{JobName: "jobjdbc"}))
}

func TestRunApplication_AbandonUnknownExecution(t *testing.T) {
	f := newFixture(t, "inmemory", "id,name,price")

	assert.Equal(t, app.ExitUsage, f.run(t, app.Options{Abandon: "no-such-execution"}))
}
