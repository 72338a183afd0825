package job

import (
	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/internal/step/processor"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/step/reader"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/step/writer"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/component/tasklet/generic"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/job/runner"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/item"
	taskletstep "github.com/ssyoni/hello-spring-batch/pkg/batch/engine/step/tasklet"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/configbinder"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
)

// Names of fileJob and its steps.
const (
	FileJobName    = "fileJob"
	FileStepName   = "stepJob"
	ExportStepName = "exportStep"
)

// FileJobProperties are read from batch.jobs.fileJob.
type FileJobProperties struct {
	InputPath      string  `yaml:"input_path"`
	OutputPath     string  `yaml:"output_path"`
	ChunkSize      int     `yaml:"chunk_size"`
	PriceIncrement float64 `yaml:"price_increment"`
	// SkipLimit tolerates malformed lines and invalid products. 0 keeps batch.item_skip.
	SkipLimit int `yaml:"skip_limit"`
	// ParquetOutput enables exportStep, which writes the output file as parquet to this path.
	ParquetOutput      string `yaml:"parquet_output"`
	ParquetCompression string `yaml:"parquet_compression"`
	ExportBufferSize   int    `yaml:"export_buffer_size"`
}

func defaultFileJobProperties() FileJobProperties {
	return FileJobProperties{
		InputPath:          "input/sample-product.csv",
		OutputPath:         "output/output-product.csv",
		ChunkSize:          2,
		PriceIncrement:     1000,
		ParquetCompression: "SNAPPY",
		ExportBufferSize:   1000,
	}
}

// NewFileJob creates fileJob: products are read from a CSV file, their price raised and
// appended to an output CSV file, optionally followed by a parquet export of the output.
// Every launch gets a new run.id, so the job can be run repeatedly with the same parameters.
func NewFileJob(p Params) (*runner.SimpleJob, error) {
	props := defaultFileJobProperties()
	if err := configbinder.BindProperties(p.Config.JobProperties(FileJobName), &props); err != nil {
		return nil, err
	}
	if props.InputPath == "" || props.OutputPath == "" {
		return nil, exception.NewConfigurationError(FileJobName, "input_path and output_path are required", nil)
	}

	opts := []item.Option{
		item.WithPolicies(p.Config.Batch),
		item.WithStepListeners(p.Logging),
		item.WithChunkListeners(p.Logging),
		item.WithSkipListeners(p.Logging),
		item.WithRetryListeners(p.Logging),
		item.WithMetricRecorder(p.MetricRecorder),
		item.WithTracer(p.Tracer),
	}
	if props.SkipLimit > 0 {
		opts = append(opts, item.WithSkipLimit(props.SkipLimit, string(exception.KindSourceRead), string(exception.KindTransform)))
	}

	productStep, err := item.NewChunkStep[domain.Product, domain.Product](
		FileStepName,
		reader.NewCSVItemReader[domain.Product]("productReader", props.InputPath, domain.ProductFromFields, reader.WithLinesToSkip(1)),
		processor.NewProductProcessor(props.PriceIncrement),
		writer.NewCSVItemWriter[domain.Product]("productWriter", props.OutputPath, domain.ProductFields),
		props.ChunkSize,
		p.JobRepository,
		p.TxManager,
		opts...,
	)
	if err != nil {
		return nil, err
	}
	steps := []port.Step{productStep}

	if props.ParquetOutput != "" {
		exportStep, err := newExportStep(p, props)
		if err != nil {
			return nil, err
		}
		steps = append(steps, exportStep)
	}

	return runner.NewSimpleJob(FileJobName, p.JobRepository, steps,
		runner.WithIncrementer(p.RunIDIncrementer),
		runner.WithJobListeners(p.Logging),
		runner.WithMetricRecorder(p.MetricRecorder),
		runner.WithTracer(p.Tracer),
	)
}

func newExportStep(p Params, props FileJobProperties) (port.Step, error) {
	parquetWriter, err := writer.NewParquetWriter("productParquetWriter", map[string]interface{}{
		"outputPath":      props.ParquetOutput,
		"compressionType": props.ParquetCompression,
	}, new(domain.Product))
	if err != nil {
		return nil, err
	}
	export, err := generic.NewParquetExportTasklet[domain.Product](
		"productParquetExport",
		map[string]interface{}{"readBufferSize": props.ExportBufferSize},
		reader.NewCSVItemReader[domain.Product]("outputProductReader", props.OutputPath, domain.ProductFromFields),
		parquetWriter,
		p.MetricRecorder,
	)
	if err != nil {
		return nil, err
	}
	return taskletstep.NewTaskletStep(ExportStepName, export, p.JobRepository, p.TxManager,
		taskletstep.WithStepListeners(p.Logging),
		taskletstep.WithMetricRecorder(p.MetricRecorder),
		taskletstep.WithTracer(p.Tracer),
	)
}
