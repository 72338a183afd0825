// Package config holds the configuration model of the batch engine and loads it from an
// embedded YAML document, an optional .env file and environment variables.
package config

import (
	dbconfig "github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/config"
)

// EmbeddedConfig holds the content of the configuration file, typically embedded by main.go.
type EmbeddedConfig []byte

// Repository types.
const (
	RepositoryTypeInMemory = "inmemory"
	RepositoryTypeSQL      = "sql"
)

// Restart on_complete values.
const (
	// OnCompleteReturn returns the completed execution unchanged when an identical run is relaunched.
	OnCompleteReturn = "return"
	// OnCompleteReject rejects the relaunch with an error.
	OnCompleteReject = "reject"
)

// Restart policy values.
const (
	// RestartPolicyResume resumes the latest failed execution of an identical run.
	RestartPolicyResume = "resume"
	// RestartPolicyAlwaysNew applies the job's incrementer on every launch.
	RestartPolicyAlwaysNew = "always_new"
)

// Metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOtel       = "otel"
)

// Tracing exporters.
const (
	TracingExporterNone     = "none"
	TracingExporterOTLPGRPC = "otlp-grpc"
	TracingExporterOTLPHTTP = "otlp-http"
)

// RetryConfig configures a retry policy. Intervals are in milliseconds.
type RetryConfig struct {
	MaxAttempts         int      `yaml:"max_attempts"`
	InitialInterval     int      `yaml:"initial_interval"`
	MaxInterval         int      `yaml:"max_interval"`
	Multiplier          float64  `yaml:"multiplier"`
	RetryableExceptions []string `yaml:"retryable_exceptions"`
}

// SkipConfig configures the item skip policy of chunk steps.
type SkipConfig struct {
	// SkipLimit is the number of skippable failures tolerated per step execution.
	SkipLimit           int      `yaml:"skip_limit"`
	SkippableExceptions []string `yaml:"skippable_exceptions"`
}

// RestartConfig controls how a relaunch with identical parameters is resolved.
type RestartConfig struct {
	// AllowStopped lets a STOPPED execution resume without an explicit restart request.
	AllowStopped bool   `yaml:"allow_stopped"`
	OnComplete   string `yaml:"on_complete"`
	Policy       string `yaml:"policy"`
}

// RepositoryConfig selects the job repository implementation.
type RepositoryConfig struct {
	Type string `yaml:"type"`
	// Database is the key of the connection in Databases used by the sql repository.
	Database string `yaml:"database"`
	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// OTLPConfig configures an OTLP exporter.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	Insecure bool   `yaml:"insecure"`
}

// MetricsConfig configures the metrics recorder.
type MetricsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Backend string     `yaml:"backend"`
	OTLP    OTLPConfig `yaml:"otlp"`
	// TextfilePath receives the prometheus registry in text format when the application stops.
	TextfilePath string `yaml:"textfile_path"`
	// AsyncBufferSize queues metric events for a background worker. 0 records synchronously.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// TracingConfig configures the job and step tracer.
type TracingConfig struct {
	Enabled     bool       `yaml:"enabled"`
	Exporter    string     `yaml:"exporter"`
	ServiceName string     `yaml:"service_name"`
	OTLP        OTLPConfig `yaml:"otlp"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR, FATAL.
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists job parameters whose values are masked in logs and in the repository.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// BatchConfig holds all configuration under the "batch" key.
type BatchConfig struct {
	// ChunkSize is the default commit interval of chunk steps.
	ChunkSize int `yaml:"chunk_size"`
	// ItemRetry is applied to each read and each transform.
	ItemRetry RetryConfig `yaml:"item_retry"`
	// ItemSkip is applied to read and transform failures after retries are exhausted.
	ItemSkip SkipConfig `yaml:"item_skip"`
	// ChunkRetry is applied to a failed chunk flush.
	ChunkRetry RetryConfig `yaml:"chunk_retry"`
	// TaskletMaxIterations bounds the number of CONTINUABLE iterations of a tasklet step.
	TaskletMaxIterations int                                `yaml:"tasklet_max_iterations"`
	Restart              RestartConfig                      `yaml:"restart"`
	Repository           RepositoryConfig                   `yaml:"repository"`
	Databases            map[string]dbconfig.DatabaseConfig `yaml:"databases"`
	Metrics              MetricsConfig                      `yaml:"metrics"`
	Tracing              TracingConfig                      `yaml:"tracing"`
	System               SystemConfig                       `yaml:"system"`
	Security             SecurityConfig                     `yaml:"security"`
	// Jobs holds job-specific properties, bound by each job with configbinder.
	Jobs map[string]map[string]interface{} `yaml:"jobs"`
}

// Config is the root of the application configuration.
type Config struct {
	Batch BatchConfig `yaml:"batch"`
	// EmbeddedConfig is the raw document the configuration was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// GlobalConfig is the configuration loaded by NewConfigProvider.
// It is read by helpers that have no injected configuration, such as parameter masking.
var GlobalConfig *Config

// GetMaskedParameterKeys returns the keys to be masked from the global configuration.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return []string{}
	}
	return GlobalConfig.Batch.Security.MaskedParameterKeys
}

// JobProperties returns the properties configured under batch.jobs.<jobName>.
func (c *Config) JobProperties(jobName string) map[string]interface{} {
	if c == nil || c.Batch.Jobs == nil {
		return nil
	}
	return c.Batch.Jobs[jobName]
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Batch: BatchConfig{
			ChunkSize: 10,
			ItemRetry: RetryConfig{
				MaxAttempts:     1,
				InitialInterval: 100,
				MaxInterval:     10000,
				Multiplier:      2.0,
				RetryableExceptions: []string{
					"context.DeadlineExceeded",
				},
			},
			ItemSkip: SkipConfig{
				SkipLimit: 0,
			},
			ChunkRetry: RetryConfig{
				MaxAttempts:     1,
				InitialInterval: 100,
				MaxInterval:     10000,
				Multiplier:      2.0,
				RetryableExceptions: []string{
					"SinkWriteError",
				},
			},
			TaskletMaxIterations: 1000,
			Restart: RestartConfig{
				AllowStopped: false,
				OnComplete:   OnCompleteReturn,
				Policy:       RestartPolicyResume,
			},
			Repository: RepositoryConfig{
				Type:     RepositoryTypeInMemory,
				Database: "metadata",
			},
			Databases: map[string]dbconfig.DatabaseConfig{},
			Metrics: MetricsConfig{
				Backend: MetricsBackendPrometheus,
				OTLP:    OTLPConfig{Protocol: "grpc"},
			},
			Tracing: TracingConfig{
				Exporter:    TracingExporterNone,
				ServiceName: "hello-spring-batch",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Jobs: map[string]map[string]interface{}{},
		},
	}
}
