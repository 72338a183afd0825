package notification

import (
	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
)

// Module provides the LogNotifier and registers a NotificationListener with the job launcher.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLogNotifier,
		fx.As(new(Notifier)),
	)),
	fx.Provide(fx.Annotate(
		NewNotificationListener,
		fx.As(new(port.CompletionListener)),
		fx.ResultTags(`group:"completionListeners"`),
	)),
)
