package monitor

import (
	"context"

	"github.com/trainloop/trainloop/pkg/hook"
)

// RunOption configures the Run loop.
type RunOption func(*runConfig)

type runConfig struct {
	onStep func(step int64, result *hook.RunResult)
}

// WithStepCallback registers a function invoked after every successful
// step with the caller's slice of the results. It runs on the loop
// goroutine; keep it fast.
func WithStepCallback(fn func(step int64, result *hook.RunResult)) RunOption {
	return func(c *runConfig) { c.onStep = fn }
}

// Run drives the session with the same request until a hook or an
// external observer requests a stop, the context is cancelled, or a
// step fails. It does not close the session.
func Run(ctx context.Context, s *Session, req *hook.RunRequest, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for !s.ShouldStop() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := s.Run(ctx, req)
		if err != nil {
			return err
		}
		if cfg.onStep != nil {
			cfg.onStep(result.Metadata().Step, result)
		}
	}
	return nil
}
