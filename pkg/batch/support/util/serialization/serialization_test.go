package serialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/serialization"
)

func withMaskedKeys(t *testing.T, keys ...string) {
	t.Helper()
	original := config.GlobalConfig
	cfg := config.NewConfig()
	cfg.Batch.Security.MaskedParameterKeys = keys
	config.GlobalConfig = cfg
	t.Cleanup(func() { config.GlobalConfig = original })
}

func TestGetMaskedJobParametersMap(t *testing.T) {
	withMaskedKeys(t, "password", "api_key")

	params := map[string]interface{}{
		"user":     "alice",
		"password": "secret",
		"api_key":  "xyz123",
		"count":    10,
	}
	masked := serialization.GetMaskedJobParametersMap(params)

	assert.Equal(t, "alice", masked["user"])
	assert.Equal(t, 10, masked["count"])
	assert.Equal(t, serialization.MaskedValue, masked["password"])
	assert.Equal(t, serialization.MaskedValue, masked["api_key"])
	assert.Equal(t, "secret", params["password"], "input must not be modified")
	assert.Empty(t, serialization.GetMaskedJobParametersMap(nil))
}

func TestMarshalJobParameters(t *testing.T) {
	withMaskedKeys(t, "password")

	data, err := serialization.MarshalJobParameters(map[string]interface{}{"run.id": 3, "password": "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"run.id":3,"password":"********"}`, string(data))

	var decoded map[string]interface{}
	require.NoError(t, serialization.UnmarshalJobParameters(data, &decoded))
	assert.Equal(t, float64(3), decoded["run.id"])

	empty, err := serialization.MarshalJobParameters(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestExecutionContextRoundTrip(t *testing.T) {
	data, err := serialization.MarshalExecutionContext(map[string]interface{}{"reader.readCount": 4})
	require.NoError(t, err)

	ec := map[string]interface{}{"stale": true}
	require.NoError(t, serialization.UnmarshalExecutionContext(data, &ec))
	assert.Equal(t, map[string]interface{}{"reader.readCount": float64(4)}, ec)

	require.NoError(t, serialization.UnmarshalExecutionContext([]byte("null"), &ec))
	assert.Empty(t, ec)

	nilData, err := serialization.MarshalExecutionContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(nilData))
}

func TestUnmarshalExecutionContext_Invalid(t *testing.T) {
	var ec map[string]interface{}
	err := serialization.UnmarshalExecutionContext([]byte("{not json"), &ec)

	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindRepository))
}

func TestFailures(t *testing.T) {
	data, err := serialization.MarshalFailures(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = serialization.MarshalFailures([]string{"SourceReadError: boom"})
	require.NoError(t, err)

	var msgs []string
	require.NoError(t, serialization.UnmarshalFailures(data, &msgs))
	assert.Equal(t, []string{"SourceReadError: boom"}, msgs)

	require.NoError(t, serialization.UnmarshalFailures(nil, &msgs))
	assert.Empty(t, msgs)
}
