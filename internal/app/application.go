package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/usecase"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/listener"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// Process exit codes.
const (
	ExitCompleted = 0
	// ExitFailed is returned for a FAILED or STOPPED job.
	ExitFailed = 1
	// ExitUsage is returned when the job could not be launched: bad arguments, invalid
	// configuration or a rejected launch.
	ExitUsage = 2
)

// Options are the choices of one command line run.
type Options struct {
	JobName string
	Params  model.JobParameters
	// Fresh applies the job's incrementer to start a new JobInstance.
	Fresh bool
	// Restart resumes a STOPPED execution.
	Restart bool
	// List prints the registered job names, with the number of recorded JobInstances,
	// instead of running a job.
	List bool
	// Abandon marks the given JobExecution ABANDONED instead of running a job.
	Abandon string
}

// batch holds what RunApplication needs from the container.
type batch struct {
	Registry usecase.JobRegistry
	Launcher usecase.JobLauncher
	Explorer usecase.JobExplorer
	Operator usecase.JobOperator
	Signaler *listener.JobCompletionSignaler
}

// RunApplication builds the container, starts it, runs the selected job to completion, stops
// the container and returns the process exit code.
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, dbProviderOptions []fx.Option, opts Options) int {
	var b batch
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		fx.Options(dbProviderOptions...),
		Module,
		fx.Populate(&b.Registry, &b.Launcher, &b.Explorer, &b.Operator, &b.Signaler),
	)
	if err := app.Err(); err != nil {
		logger.Errorf("Failed to build the application: %v", err)
		return ExitUsage
	}

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		logger.Errorf("Failed to start the application: %v", err)
		return ExitUsage
	}

	code := run(ctx, b, opts)

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Failed to stop the application cleanly: %v", err)
	}
	return code
}

func run(ctx context.Context, b batch, opts Options) int {
	if opts.List {
		return list(ctx, b)
	}
	if opts.Abandon != "" {
		if err := b.Operator.Abandon(ctx, opts.Abandon); err != nil {
			logger.Errorf("%v", err)
			return ExitUsage
		}
		return ExitCompleted
	}

	job, err := b.Registry.GetJob(opts.JobName)
	if err != nil {
		logger.Errorf("%v", err)
		return ExitUsage
	}

	var launchOpts []usecase.LaunchOption
	if opts.Fresh {
		launchOpts = append(launchOpts, usecase.WithFreshRun())
	}
	if opts.Restart {
		launchOpts = append(launchOpts, usecase.WithRestart())
	}

	execution, err := b.Launcher.Launch(ctx, job, opts.Params, launchOpts...)
	if err != nil {
		logger.Errorf("Failed to launch job '%s': %v", opts.JobName, err)
		if errors.Is(err, context.Canceled) {
			return ExitFailed
		}
		return ExitUsage
	}

	select {
	case <-b.Signaler.Done():
		logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
			execution.JobName, execution.ID, execution.Status, execution.ExitStatus)
		return b.Signaler.ExitCode()
	default:
		// A completed run is returned without being run again.
		logger.Infof("Job '%s' (Execution ID: %s) has already completed.", execution.JobName, execution.ID)
		return execution.ExitCode
	}
}

func list(ctx context.Context, b batch) int {
	for _, name := range b.Registry.JobNames() {
		count, err := b.Explorer.GetJobInstanceCount(ctx, name)
		if err != nil {
			logger.Errorf("%v", err)
			return ExitFailed
		}
		fmt.Printf("%s\t%d\n", name, count)
	}
	return ExitCompleted
}
