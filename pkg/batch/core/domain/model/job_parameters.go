package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/serialization"
)

// JobParameters identifies a run of a job. Values are string, int64, float64, bool or time.Time.
// Together with the job name, Hash is the identity key of a JobInstance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates an empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Value implements driver.Valuer.
func (jp JobParameters) Value() (driver.Value, error) {
	if jp.Params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (jp *JobParameters) Scan(value interface{}) error {
	b, err := scanBytes(value, "JobParameters")
	if err != nil {
		return err
	}
	jp.Params = make(map[string]interface{})
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &jp.Params); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}

// Put sets key to value, creating the map if needed.
func (jp *JobParameters) Put(key string, value interface{}) {
	if jp.Params == nil {
		jp.Params = make(map[string]interface{})
	}
	jp.Params[key] = value
}

// Get returns the value of key, or nil.
func (jp JobParameters) Get(key string) interface{} {
	return jp.Params[key]
}

// GetString returns key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Params[key].(string)
	return s, ok
}

// GetInt64 returns key as an int64, accepting float64 values decoded from JSON.
func (jp JobParameters) GetInt64(key string) (int64, bool) {
	return toInt64(jp.Params[key])
}

// GetInt returns key as an int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	v, ok := toInt64(jp.Params[key])
	return int(v), ok
}

// GetBool returns key as a bool.
func (jp JobParameters) GetBool(key string) (bool, bool) {
	b, ok := jp.Params[key].(bool)
	return b, ok
}

// GetFloat64 returns key as a float64.
func (jp JobParameters) GetFloat64(key string) (float64, bool) {
	f, ok := jp.Params[key].(float64)
	return f, ok
}

// GetTime returns key as a time.Time, accepting RFC 3339 strings decoded from JSON.
func (jp JobParameters) GetTime(key string) (time.Time, bool) {
	switch v := jp.Params[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}

// Len returns the number of parameters.
func (jp JobParameters) Len() int {
	return len(jp.Params)
}

// Copy returns an independent copy.
func (jp JobParameters) Copy() JobParameters {
	out := NewJobParameters()
	for k, v := range jp.Params {
		out.Params[k] = v
	}
	return out
}

// Equal reports whether both parameter sets hold the same keys and values.
// Numeric values compare by value regardless of their Go type, so parameters read back
// from JSON still equal the ones that were launched.
func (jp JobParameters) Equal(other JobParameters) bool {
	if len(jp.Params) != len(other.Params) {
		return false
	}
	for k, v := range jp.Params {
		ov, ok := other.Params[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if at, ok := a.(time.Time); ok {
		if bs, ok := b.(string); ok {
			return at.Format(time.RFC3339Nano) == bs
		}
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	if _, ok := b.(time.Time); ok {
		return valuesEqual(b, a)
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Hash returns the SHA-256 of the canonical JSON (sorted keys) of the parameters.
func (jp JobParameters) Hash() (string, error) {
	canonical, err := jp.toCanonicalJSON()
	if err != nil {
		return "", exception.NewConfigurationError("job_parameters", "failed to marshal JobParameters to canonical JSON", err)
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// MustHash is Hash for parameters already known to be serializable.
func (jp JobParameters) MustHash() string {
	h, err := jp.Hash()
	if err != nil {
		panic(err)
	}
	return h
}

// toCanonicalJSON renders the parameters with sorted keys. Integral floats render like
// integers so that 3 and 3.0 hash identically.
func (jp JobParameters) toCanonicalJSON() (string, error) {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		v := jp.Params[k]
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339Nano)
		} else if f, ok := toFloat(v); ok && f == float64(int64(f)) {
			v = int64(f)
		}
		valBytes, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(keyBytes)
		sb.WriteString(":")
		sb.Write(valBytes)
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// String returns the parameters as JSON with sensitive values masked.
func (jp JobParameters) String() string {
	data, err := json.Marshal(serialization.GetMaskedJobParametersMap(jp.Params))
	if err != nil {
		return fmt.Sprintf("{[ERROR: failed to marshal masked parameters: %v]}", err)
	}
	return string(data)
}
