// Command hello-spring-batch runs one batch job and exits with its exit code.
//
//	hello-spring-batch -job fileJob -fresh
//	hello-spring-batch -job helloJob message=hi "run.date(date)=2024-03-01"
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ssyoni/hello-spring-batch/internal/app"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// embeddedConfig is the application configuration bundled into the binary.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// dbAdaptors returns the database providers named in DB_ADAPTORS, all of them by default.
func dbAdaptors() []string {
	adaptors := os.Getenv("DB_ADAPTORS")
	if adaptors == "" {
		adaptors = "sqlite,postgres,mysql"
	}
	var names []string
	for _, name := range strings.Split(adaptors, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("hello-spring-batch", flag.ContinueOnError)
	jobName := fs.String("job", "", "name of the job to run")
	fresh := fs.Bool("fresh", false, "start a new job instance using the job's incrementer")
	restart := fs.Bool("restart", false, "resume a stopped execution")
	list := fs.Bool("list", false, "list the registered jobs and exit")
	abandon := fs.String("abandon", "", "mark the given job execution ABANDONED and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: hello-spring-batch -job <name> [-fresh] [-restart] [key[(type)]=value ...]\n")
		fmt.Fprintf(fs.Output(), "       hello-spring-batch -list | -abandon <executionID>\n")
		fmt.Fprintf(fs.Output(), "Types: string (default), long, double, date, bool.\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return app.ExitUsage
	}
	if *jobName == "" && !*list && *abandon == "" {
		fs.Usage()
		return app.ExitUsage
	}
	params, err := app.ParseJobParameters(fs.Args())
	if err != nil {
		logger.Errorf("%v", err)
		return app.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	return app.RunApplication(ctx, envFilePath, embeddedConfig, app.DBProviderOptions(dbAdaptors()), app.Options{
		JobName: *jobName,
		Params:  params,
		Fresh:   *fresh,
		Restart: *restart,
		List:    *list,
		Abandon: *abandon,
	})
}
