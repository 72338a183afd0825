package incrementer

import (
	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
)

// Module provides the RunIDIncrementer and the TimestampIncrementer as named
// JobParametersIncrementers.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func() *RunIDIncrementer { return NewRunIDIncrementer(DefaultRunIDKey) },
		fx.As(new(port.JobParametersIncrementer)),
		fx.ResultTags(`name:"runIdIncrementer"`),
	)),
	fx.Provide(fx.Annotate(
		func() *TimestampIncrementer { return NewTimestampIncrementer(DefaultTimestampKey) },
		fx.As(new(port.JobParametersIncrementer)),
		fx.ResultTags(`name:"timestampIncrementer"`),
	)),
)
