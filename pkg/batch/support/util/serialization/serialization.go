// Package serialization converts execution contexts, job parameters and failure lists
// to and from the JSON stored by the job repositories.
package serialization

import (
	"encoding/json"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const module = "serialization"

// MaskedValue replaces the value of a sensitive job parameter.
const MaskedValue = "********"

// GetMaskedJobParametersMap returns a copy of params where every key listed in
// batch.security.masked_parameter_keys has its value replaced by MaskedValue.
func GetMaskedJobParametersMap(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return map[string]interface{}{}
	}
	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		masked[k] = v
	}
	for _, key := range config.GetMaskedParameterKeys() {
		if _, ok := masked[key]; ok {
			masked[key] = MaskedValue
		}
	}
	return masked
}

// MarshalExecutionContext serializes an execution context. A nil context becomes "{}".
func MarshalExecutionContext(ec map[string]interface{}) ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, exception.NewRepositoryError(module, "failed to serialize ExecutionContext", err)
	}
	return data, nil
}

// UnmarshalExecutionContext replaces the contents of *ec with the decoded data.
// Numbers are decoded as float64, so readers converting positions should go through
// the typed getters of model.ExecutionContext.
func UnmarshalExecutionContext(data []byte, ec *map[string]interface{}) error {
	if *ec == nil {
		*ec = make(map[string]interface{})
	} else {
		for k := range *ec {
			delete(*ec, k)
		}
	}
	if isEmptyJSON(data) {
		return nil
	}
	if err := json.Unmarshal(data, ec); err != nil {
		logger.Errorf("Failed to deserialize ExecutionContext: %v", err)
		return exception.NewRepositoryError(module, "failed to deserialize ExecutionContext", err)
	}
	return nil
}

// MarshalJobParameters serializes job parameters for persistence with sensitive values masked.
func MarshalJobParameters(params map[string]interface{}) ([]byte, error) {
	masked := GetMaskedJobParametersMap(params)
	if len(masked) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(masked)
	if err != nil {
		return nil, exception.NewRepositoryError(module, "failed to serialize JobParameters", err)
	}
	return data, nil
}

// UnmarshalJobParameters replaces the contents of *params with the decoded data.
func UnmarshalJobParameters(data []byte, params *map[string]interface{}) error {
	if *params == nil {
		*params = make(map[string]interface{})
	} else {
		for k := range *params {
			delete(*params, k)
		}
	}
	if isEmptyJSON(data) {
		return nil
	}
	if err := json.Unmarshal(data, params); err != nil {
		logger.Errorf("Failed to deserialize JobParameters: %v", err)
		return exception.NewRepositoryError(module, "failed to deserialize JobParameters", err)
	}
	return nil
}

// MarshalFailures serializes a failure list. A nil list becomes "[]".
func MarshalFailures(failures []string) ([]byte, error) {
	if failures == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(failures)
	if err != nil {
		return nil, exception.NewRepositoryError(module, "failed to serialize Failures", err)
	}
	return data, nil
}

// UnmarshalFailures decodes a failure list.
func UnmarshalFailures(data []byte, msgs *[]string) error {
	if len(data) == 0 || string(data) == "null" {
		*msgs = []string{}
		return nil
	}
	if err := json.Unmarshal(data, msgs); err != nil {
		logger.Errorf("Failed to deserialize Failures: %v", err)
		return exception.NewRepositoryError(module, "failed to deserialize Failures", err)
	}
	return nil
}

func isEmptyJSON(data []byte) bool {
	s := string(data)
	return len(data) == 0 || s == "null" || s == "{}"
}
