// Package config manages configuration for monitored runs.
// It loads settings from a YAML file, environment variables, and
// command-line flags, with precedence:
// defaults < YAML file < environment variables < flags.
package config
