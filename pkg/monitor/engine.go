package monitor

import (
	"context"
	"time"

	"github.com/trainloop/trainloop/pkg/hook"
)

// Engine is the compute-graph execution engine a monitored session
// drives. Implementations define named operations before Finalize and
// evaluate them in Step afterwards.
type Engine interface {
	// Finalize makes the operation graph immutable. It is called once
	// by the session after every hook's Begin returned. Finalizing an
	// already finalized engine is a no-op.
	Finalize() error

	// Finalized reports whether the graph is immutable.
	Finalized() bool

	// Step evaluates the named outputs once, with bindings shadowing
	// engine inputs for the duration of the step.
	Step(ctx context.Context, ops []string, bindings map[string]any, opts *hook.RunOptions) (*StepOutput, error)

	// Close releases engine resources. The session calls it once after
	// every hook's End returned.
	Close() error
}

// StepOutput is what an engine produces for one step.
type StepOutput struct {
	// Values holds one computed value per requested op name.
	Values map[string]any

	// OpDurations holds per-op timings when the step ran with tracing
	// enabled. Nil otherwise.
	OpDurations map[string]time.Duration
}
