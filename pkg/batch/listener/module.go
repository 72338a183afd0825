package listener

import (
	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener/logging"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener/notification"
)

// Module aggregates the listener modules and registers the JobCompletionSignaler with the
// job launcher.
var Module = fx.Options(
	logging.Module,
	notification.Module,
	fx.Provide(NewJobCompletionSignaler),
	fx.Provide(fx.Annotate(
		func(s *JobCompletionSignaler) port.CompletionListener { return s },
		fx.ResultTags(`group:"completionListeners"`),
	)),
)
