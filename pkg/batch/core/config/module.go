package config

import "go.uber.org/fx"

// NewLoggingConfigProvider exposes the logging section to components that only need it.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Batch.System.Logging
}

// Module provides *Config and its sections. The application supplies EmbeddedConfig
// and optionally a string named "envFilePath".
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
)
