package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConfigOverrideProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("any valid port overrides the server address", prop.ForAll(
		func(port int) bool {
			addr := fmt.Sprintf(":%d", port)
			cfg, err := NewLoader().WithCmdArgs(map[string]string{
				"server.address": addr,
			}).Load()
			if err != nil {
				return false
			}
			return cfg.Server.Address == addr && isValidAddress(addr)
		},
		gen.IntRange(1, 65535),
	))

	properties.Property("any positive duration overrides the run timeout", prop.ForAll(
		func(seconds int) bool {
			cfg, err := NewLoader().WithCmdArgs(map[string]string{
				"run.timeout": fmt.Sprintf("%ds", seconds),
			}).Load()
			if err != nil {
				return false
			}
			return cfg.Run.Timeout == time.Duration(seconds)*time.Second
		},
		gen.IntRange(1, 3600),
	))

	properties.Property("stop target overrides survive the loader", prop.ForAll(
		func(steps int64) bool {
			cfg, err := NewLoader().WithCmdArgs(map[string]string{
				"hooks.stop_after_steps": fmt.Sprintf("%d", steps),
			}).Load()
			if err != nil {
				return false
			}
			return cfg.Hooks.StopAfterSteps == steps
		},
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}
