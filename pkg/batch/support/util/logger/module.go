package logger

import "go.uber.org/fx"

// Module installs FxLoggerAdapter as the fx event logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
