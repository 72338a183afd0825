package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

const paramsModule = "parameters"

// dateLayouts are tried in order for "(date)" parameters.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseJobParameters converts command line arguments of the form key=value into
// JobParameters. A type suffix selects the value type: key(string)=, key(long)=,
// key(double)=, key(date)= and key(bool)=. Values without a suffix are strings.
func ParseJobParameters(args []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return params, exception.NewConfigurationError(paramsModule, fmt.Sprintf("invalid job parameter %q, expected key=value", arg), nil)
		}
		name, typ := splitType(strings.TrimSpace(key))
		value, err := convert(typ, raw)
		if err != nil {
			return params, exception.NewConfigurationError(paramsModule, fmt.Sprintf("invalid value for job parameter '%s'", name), err)
		}
		params.Put(name, value)
	}
	return params, nil
}

func splitType(key string) (string, string) {
	open := strings.LastIndex(key, "(")
	if open <= 0 || !strings.HasSuffix(key, ")") {
		return key, "string"
	}
	return key[:open], strings.ToLower(key[open+1 : len(key)-1])
}

func convert(typ, raw string) (interface{}, error) {
	switch typ {
	case "string":
		return raw, nil
	case "long", "int":
		return strconv.ParseInt(raw, 10, 64)
	case "double", "float":
		return strconv.ParseFloat(raw, 64)
	case "bool", "boolean":
		return strconv.ParseBool(raw)
	case "date":
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a date (want RFC 3339 or 2006-01-02)", raw)
	default:
		return nil, fmt.Errorf("unknown parameter type '%s'", typ)
	}
}
