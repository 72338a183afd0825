// Package configbinder binds loosely typed property maps (job-specific YAML sections,
// step properties) onto typed structs.
package configbinder

import (
	"github.com/mitchellh/mapstructure"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

const module = "configbinder"

// BindProperties decodes properties into target, which must be a pointer to a struct.
// Field names are taken from the "yaml" tag and scalar strings are converted to the
// field type ("2" binds to an int field). Durations accept Go duration strings.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return exception.NewConfigurationError(module, "failed to create property decoder", err)
	}
	if properties == nil {
		return nil
	}
	if err := decoder.Decode(properties); err != nil {
		return exception.NewConfigurationError(module, "failed to bind properties", err)
	}
	return nil
}
