package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/internal/app"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

func TestParseJobParameters(t *testing.T) {
	params, err := app.ParseJobParameters([]string{
		"message=hello world",
		"run.id(long)=42",
		"ratio(double)=0.25",
		"day(date)=2024-03-01",
		"dry(bool)=true",
		"formula=a=b",
	})
	require.NoError(t, err)

	msg, _ := params.GetString("message")
	assert.Equal(t, "hello world", msg)
	id, _ := params.GetInt64("run.id")
	assert.Equal(t, int64(42), id)
	ratio, _ := params.GetFloat64("ratio")
	assert.Equal(t, 0.25, ratio)
	day, ok := params.GetTime("day")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day)
	dry, _ := params.GetBool("dry")
	assert.True(t, dry)
	formula, _ := params.GetString("formula")
	assert.Equal(t, "a=b", formula)
}

func TestParseJobParameters_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"novalue"},
		{"=value"},
		{"count(long)=ten"},
		{"when(date)=yesterday"},
		{"x(uuid)=1"},
	} {
		_, err := app.ParseJobParameters(args)
		require.Error(t, err, "%v", args)
		assert.True(t, exception.IsKind(err, exception.KindConfiguration), "%v", args)
	}
}

func TestParseJobParameters_Empty(t *testing.T) {
	params, err := app.ParseJobParameters(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, params.Len())
}
