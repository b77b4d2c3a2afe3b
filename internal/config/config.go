package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trainloop/trainloop/internal/reporter"
)

// Config represents the complete configuration for a monitored run.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Engine    EngineConfig              `yaml:"engine"`
	Run       RunConfig                 `yaml:"run"`
	Hooks     HooksConfig               `yaml:"hooks"`
	Reporters []reporter.ReporterConfig `yaml:"reporters,omitempty"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds the control surface configuration.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" env:"TL_SERVER_ENABLED"`
	Address      string        `yaml:"address" env:"TL_SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"TL_SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"TL_SERVER_WRITE_TIMEOUT"`
	EnableCORS   bool          `yaml:"enable_cors" env:"TL_SERVER_ENABLE_CORS"`
}

// EngineConfig describes the ops and initial state of the expression
// engine.
type EngineConfig struct {
	Ops   []OpConfig     `yaml:"ops"`
	State map[string]any `yaml:"state,omitempty"`
}

// OpConfig is one named expression the engine evaluates per step.
type OpConfig struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// RunConfig holds the monitored loop configuration.
type RunConfig struct {
	// Fetches are the op names the caller asks for each step.
	Fetches []string `yaml:"fetches" env:"TL_RUN_FETCHES"`
	// Bindings are per-step input overrides.
	Bindings map[string]any `yaml:"bindings,omitempty"`
	// Timeout bounds a single step.
	Timeout time.Duration `yaml:"timeout" env:"TL_RUN_TIMEOUT"`
	// Trace enables per-op timing collection.
	Trace bool `yaml:"trace" env:"TL_RUN_TRACE"`
	// Tags are attached to every step.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// HooksConfig enables and tunes the standard hooks.
type HooksConfig struct {
	// StopAfterSteps bounds the run; 0 means unbounded.
	StopAfterSteps int64 `yaml:"stop_after_steps" env:"TL_HOOKS_STOP_AFTER_STEPS"`

	// CounterEverySteps is the throughput log interval; 0 disables it.
	CounterEverySteps int64 `yaml:"counter_every_steps" env:"TL_HOOKS_COUNTER_EVERY_STEPS"`

	ValueLog   ValueLogConfig   `yaml:"value_log"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	NaNGuard   NaNGuardConfig   `yaml:"nan_guard"`
	Summary    SummaryConfig    `yaml:"summary"`

	// ScriptPath points at a JavaScript hook file.
	ScriptPath string `yaml:"script_path" env:"TL_HOOKS_SCRIPT_PATH"`
}

// ValueLogConfig configures the value logging hook.
type ValueLogConfig struct {
	Ops        []string `yaml:"ops" env:"TL_HOOKS_VALUE_LOG_OPS"`
	EverySteps int64    `yaml:"every_steps" env:"TL_HOOKS_VALUE_LOG_EVERY_STEPS"`
	Paths      []string `yaml:"paths,omitempty"`
}

// CheckpointConfig configures the checkpoint hook.
type CheckpointConfig struct {
	Dir        string `yaml:"dir" env:"TL_HOOKS_CHECKPOINT_DIR"`
	EverySteps int64  `yaml:"every_steps" env:"TL_HOOKS_CHECKPOINT_EVERY_STEPS"`
}

// NaNGuardConfig configures the non-finite value guard.
type NaNGuardConfig struct {
	Op              string `yaml:"op" env:"TL_HOOKS_NAN_GUARD_OP"`
	FailOnNonFinite bool   `yaml:"fail_on_non_finite" env:"TL_HOOKS_NAN_GUARD_FAIL"`
}

// SummaryConfig configures the summary hook.
type SummaryConfig struct {
	Ops []string `yaml:"ops" env:"TL_HOOKS_SUMMARY_OPS"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"TL_LOG_LEVEL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:      false,
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   false,
		},
		Engine: EngineConfig{
			State: make(map[string]any),
		},
		Run: RunConfig{
			Fetches: []string{"step"},
		},
		Hooks: HooksConfig{
			CounterEverySteps: 100,
			ValueLog: ValueLogConfig{
				EverySteps: 100,
			},
			Checkpoint: CheckpointConfig{
				EverySteps: 100,
			},
		},
		Reporters: []reporter.ReporterConfig{
			{Type: reporter.ReporterTypeConsole, Enabled: true},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "TL_",
		cmdArgs:   make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the prefix for environment variables.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply flag overrides: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Handle nested structs
		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// applyCmdOverrides applies command-line argument overrides to the configuration.
func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := l.setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("set config value %s: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration value by dot-notation path.
func (l *Loader) setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		fieldName := strings.ReplaceAll(part, "_", "")

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName) || strings.EqualFold(name, part)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown config path: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("expected %s to be a struct, got %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration needs its own parser
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %w", err)
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	case reflect.Map:
		// key=value,key=value maps
		if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.String {
			m := make(map[string]string)
			pairs := strings.Split(value, ",")
			for _, pair := range pairs {
				kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
				if len(kv) == 2 {
					m[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
				}
			}
			field.Set(reflect.ValueOf(m))
		} else {
			return fmt.Errorf("unsupported map type")
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone, _ := ParseConfig(data)
	return clone
}
