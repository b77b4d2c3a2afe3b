package hook

import "time"

// RunMetadata is diagnostic information the loop records for one step.
// The hook layer carries it opaquely.
type RunMetadata struct {
	// RunID identifies the whole monitored run.
	RunID string `json:"run_id"`

	// Step is the zero-based index of the step within the run.
	Step int64 `json:"step"`

	// StartedAt is when the engine began executing the step.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time the engine spent on the step.
	Duration time.Duration `json:"duration"`

	// Ops are the distinct output names the merged step executed.
	Ops []string `json:"ops,omitempty"`

	// OpDurations holds per-operation timings when tracing was enabled
	// via RunOptions.Trace.
	OpDurations map[string]time.Duration `json:"op_durations,omitempty"`
}

// RunResult carries the outcome of one step back to a hook's AfterRun.
// Results mirror the nesting of the fetches the hook requested in the
// paired BeforeRun. A RunResult is immutable; the loop constructs one
// per hook per iteration.
type RunResult struct {
	results  Value
	options  *RunOptions
	metadata *RunMetadata
}

// NewResult constructs a result from its three parts. All three are
// mandatory positional arguments with no defaults and no validation.
func NewResult(results Value, options *RunOptions, metadata *RunMetadata) *RunResult {
	return &RunResult{results: results, options: options, metadata: metadata}
}

// Results returns the computed values, shaped like the fetches that
// produced them.
func (r *RunResult) Results() Value { return r.results }

// Options returns the execution options the step actually used.
func (r *RunResult) Options() *RunOptions { return r.options }

// Metadata returns the diagnostic information recorded for the step.
func (r *RunResult) Metadata() *RunMetadata { return r.metadata }
