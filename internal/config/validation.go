package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateServerConfig(&cfg.Server)
	v.validateEngineConfig(&cfg.Engine)
	v.validateRunConfig(cfg)
	v.validateHooksConfig(&cfg.Hooks)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateServerConfig validates the control surface configuration.
func (v *Validator) validateServerConfig(cfg *ServerConfig) {
	if !cfg.Enabled {
		return
	}

	if cfg.Address == "" {
		v.addError("server.address", "address is required")
	} else if !isValidAddress(cfg.Address) {
		v.addError("server.address", "invalid address format, expected host:port or :port")
	}

	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", "read timeout must be non-negative")
	}
	if cfg.WriteTimeout < 0 {
		v.addError("server.write_timeout", "write timeout must be non-negative")
	}
	if cfg.ReadTimeout > 0 && cfg.ReadTimeout < time.Second {
		v.addError("server.read_timeout", "read timeout should be at least 1 second")
	}
	if cfg.WriteTimeout > 0 && cfg.WriteTimeout < time.Second {
		v.addError("server.write_timeout", "write timeout should be at least 1 second")
	}
}

// validateEngineConfig validates the engine op definitions.
func (v *Validator) validateEngineConfig(cfg *EngineConfig) {
	if len(cfg.Ops) == 0 {
		v.addError("engine.ops", "at least one op is required")
	}

	seen := make(map[string]bool, len(cfg.Ops))
	for i, op := range cfg.Ops {
		field := fmt.Sprintf("engine.ops[%d]", i)
		if op.Name == "" {
			v.addError(field+".name", "op name is required")
			continue
		}
		if op.Name == "step" {
			v.addError(field+".name", "op name 'step' is reserved")
		}
		if seen[op.Name] {
			v.addError(field+".name", fmt.Sprintf("duplicate op name '%s'", op.Name))
		}
		seen[op.Name] = true
		if op.Expr == "" {
			v.addError(field+".expr", "op expression is required")
		}
	}

	for key := range cfg.State {
		if key == "" {
			v.addError("engine.state", "state keys must be non-empty")
		}
	}
}

// validateRunConfig validates the loop configuration against the
// defined ops.
func (v *Validator) validateRunConfig(cfg *Config) {
	run := &cfg.Run
	if len(run.Fetches) == 0 {
		v.addError("run.fetches", "at least one fetch is required")
	}

	defined := make(map[string]bool, len(cfg.Engine.Ops)+1)
	defined["step"] = true
	for _, op := range cfg.Engine.Ops {
		defined[op.Name] = true
	}

	for i, fetch := range run.Fetches {
		if fetch == "" {
			v.addError(fmt.Sprintf("run.fetches[%d]", i), "fetch name must be non-empty")
		} else if !defined[fetch] {
			v.addError(fmt.Sprintf("run.fetches[%d]", i), fmt.Sprintf("unknown op '%s'", fetch))
		}
	}

	if run.Timeout < 0 {
		v.addError("run.timeout", "timeout must be non-negative")
	}
}

// validateHooksConfig validates the hook settings.
func (v *Validator) validateHooksConfig(cfg *HooksConfig) {
	if cfg.StopAfterSteps < 0 {
		v.addError("hooks.stop_after_steps", "stop_after_steps must be non-negative")
	}
	if cfg.CounterEverySteps < 0 {
		v.addError("hooks.counter_every_steps", "counter_every_steps must be non-negative")
	}

	if len(cfg.ValueLog.Ops) > 0 && cfg.ValueLog.EverySteps <= 0 {
		v.addError("hooks.value_log.every_steps", "every_steps must be positive when value logging is on")
	}

	if cfg.Checkpoint.Dir != "" && cfg.Checkpoint.EverySteps <= 0 {
		v.addError("hooks.checkpoint.every_steps", "every_steps must be positive when checkpointing is on")
	}
}

// validateLoggingConfig validates the logging configuration.
func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}
}

// isValidAddress checks if the address is a valid host:port format.
func isValidAddress(addr string) bool {
	if addr == "" {
		return false
	}

	// Handle :port format
	if strings.HasPrefix(addr, ":") {
		port := strings.TrimPrefix(addr, ":")
		if port == "" {
			return false
		}
		_, err := net.LookupPort("tcp", port)
		return err == nil
	}

	// Handle host:port format
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}

	if port == "" {
		return false
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return false
	}

	// Host can be empty (meaning all interfaces), an IP, or a hostname
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if !isValidHostname(host) {
				return false
			}
		}
	}

	return true
}

// isValidHostname performs basic hostname validation.
func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}

	labels := strings.Split(hostname, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		// Labels must start and end with alphanumeric
		if !isAlphanumeric(label[0]) || !isAlphanumeric(label[len(label)-1]) {
			return false
		}
		for _, c := range label {
			if !isAlphanumeric(byte(c)) && c != '-' {
				return false
			}
		}
	}

	return true
}

// isAlphanumeric checks if a byte is alphanumeric.
func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Validate validates the configuration and returns any errors.
// This is a convenience method on Config.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// MustValidate validates the configuration and panics if validation fails.
// This is useful for startup validation.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("configuration validation failed: %v", err))
	}
}

// LoadAndValidate loads configuration from a file and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
