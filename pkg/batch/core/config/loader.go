package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig builds the configuration in layers: defaults, the YAML document after
// ${VAR} expansion, then environment variables named after the yaml tags
// (batch.chunk_size -> BATCH_CHUNK_SIZE).
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewConfigurationError(moduleName, "failed to expand environment variables in config", err)
	}

	// Decoding onto the defaults keeps every value the document does not mention.
	cfg := NewConfig()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewConfigurationError(moduleName, "failed to unmarshal embedded config", err)
	}
	cfg.EmbeddedConfig = embeddedConfig

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewConfigurationError(moduleName, "failed to load config from environment variables", err)
	}
	return cfg, nil
}

// LoadConfig loads the configuration without fx. Used by tools and tests.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and publishes *Config.
// It also applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = cfg

	logger.SetLogLevel(cfg.Batch.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Batch.System.Logging.Level)
	return cfg, nil
}

// Validate checks the configuration and returns a ConfigurationError describing the first problem.
func (c *Config) Validate() error {
	b := c.Batch
	if b.ChunkSize <= 0 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("chunk_size must be greater than 0, got %d", b.ChunkSize), nil)
	}
	if b.TaskletMaxIterations <= 0 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("tasklet_max_iterations must be greater than 0, got %d", b.TaskletMaxIterations), nil)
	}
	if err := validateRetry("item_retry", b.ItemRetry); err != nil {
		return err
	}
	if err := validateRetry("chunk_retry", b.ChunkRetry); err != nil {
		return err
	}
	if b.ItemSkip.SkipLimit < 0 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("item_skip.skip_limit must not be negative, got %d", b.ItemSkip.SkipLimit), nil)
	}
	if err := checkExceptionClasses(b.ItemSkip.SkippableExceptions, "item_skip"); err != nil {
		return err
	}

	switch b.Restart.OnComplete {
	case OnCompleteReturn, OnCompleteReject:
	default:
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("restart.on_complete must be %q or %q, got %q", OnCompleteReturn, OnCompleteReject, b.Restart.OnComplete), nil)
	}
	switch b.Restart.Policy {
	case RestartPolicyResume, RestartPolicyAlwaysNew:
	default:
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("restart.policy must be %q or %q, got %q", RestartPolicyResume, RestartPolicyAlwaysNew, b.Restart.Policy), nil)
	}

	switch b.Repository.Type {
	case RepositoryTypeInMemory:
	case RepositoryTypeSQL:
		if _, ok := b.Databases[b.Repository.Database]; !ok {
			return exception.NewConfigurationError(moduleName, fmt.Sprintf("repository.database %q is not defined under databases", b.Repository.Database), nil)
		}
	default:
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown repository.type %q", b.Repository.Type), nil)
	}

	if b.Metrics.Enabled {
		switch b.Metrics.Backend {
		case MetricsBackendPrometheus, MetricsBackendOtel:
		default:
			return exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown metrics.backend %q", b.Metrics.Backend), nil)
		}
	}
	if b.Tracing.Enabled {
		switch b.Tracing.Exporter {
		case TracingExporterNone, TracingExporterOTLPGRPC, TracingExporterOTLPHTTP:
		default:
			return exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown tracing.exporter %q", b.Tracing.Exporter), nil)
		}
	}
	return nil
}

func validateRetry(section string, rc RetryConfig) error {
	if rc.MaxAttempts < 1 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("%s.max_attempts must be at least 1, got %d", section, rc.MaxAttempts), nil)
	}
	if rc.InitialInterval < 0 || rc.MaxInterval < 0 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("%s intervals must not be negative", section), nil)
	}
	if rc.Multiplier != 0 && rc.Multiplier < 1 {
		return exception.NewConfigurationError(moduleName, fmt.Sprintf("%s.multiplier must be at least 1, got %v", section, rc.Multiplier), nil)
	}
	return checkExceptionClasses(rc.RetryableExceptions, section)
}

// checkExceptionClasses validates that every configured exception name is an error kind or a registered error.
func checkExceptionClasses(classNames []string, section string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewConfigurationError(moduleName, fmt.Sprintf("%s references unknown exception class '%s'", section, name), nil)
		}
	}
	return nil
}

// loadStructFromEnv recursively overrides struct fields from environment variables.
// The variable name is the upper-cased path of yaml tags joined by "_".
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
				if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
					return err
				}
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv populates map[string]struct fields.
// BATCH_DATABASES_METADATA_HOST=localhost sets Host of the "metadata" entry, creating it if needed.
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 {
			continue
		}
		mapKey := reflect.ValueOf(strings.ToLower(keyAndField[0]))

		// Map values are not addressable, so work on a copy.
		elem := reflect.New(elemType).Elem()
		if existing := mapField.MapIndex(mapKey); existing.IsValid() {
			elem.Set(existing)
		}
		if err := setStructFieldFromEnv(elem, keyAndField[1], parts[1]); err != nil {
			return err
		}
		mapField.SetMapIndex(mapKey, elem)
	}
	return nil
}

// setStructFieldFromEnv sets the field whose yaml tag equals fieldName (case-insensitive).
// Nested structs are addressed by joining tags, e.g. POOL_MAX_OPEN_CONNS.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		yamlTag := strings.Split(typ.Field(i).Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
		if field.Kind() == reflect.Struct && len(fieldName) > len(yamlTag) && strings.EqualFold(fieldName[:len(yamlTag)+1], yamlTag+"_") {
			return setStructFieldFromEnv(field, fieldName[len(yamlTag)+1:], value)
		}
	}
	return nil
}

// setField converts value to the kind of field. []string fields take a comma-separated list.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
