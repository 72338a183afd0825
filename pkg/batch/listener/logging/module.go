package logging

import (
	"go.uber.org/fx"
)

// Module provides the shared *LoggingListener. Job definitions pass it to the job and step
// options for each listener kind they want logged.
var Module = fx.Options(
	fx.Provide(NewLoggingListener),
)
