package usecase

import (
	"go.uber.org/fx"
)

// Module provides the JobLauncher, JobOperator, JobExplorer and the JobRegistry over the
// "jobs" group.
var Module = fx.Options(
	fx.Provide(NewSimpleJobLauncherProvider),
	fx.Provide(fx.Annotate(
		func(launcher *SimpleJobLauncher) *SimpleJobLauncher { return launcher },
		fx.As(new(JobLauncher)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(fx.Annotate(
		NewJobRegistryProvider,
		fx.As(new(JobRegistry)),
	)),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
)
