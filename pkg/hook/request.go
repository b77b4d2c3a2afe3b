package hook

import "time"

// RunOptions carries step-level execution configuration. The hook layer
// treats it as opaque; the engine interprets it.
type RunOptions struct {
	// Timeout bounds the execution of a single step. Zero means no
	// limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Trace asks the engine to record per-operation timings into the
	// step's run metadata.
	Trace bool `yaml:"trace" json:"trace"`

	// Tags are attached to every metric and event the step produces.
	Tags map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Clone returns a deep copy, or nil for a nil receiver.
func (o *RunOptions) Clone() *RunOptions {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Tags != nil {
		cp.Tags = make(map[string]string, len(o.Tags))
		for k, v := range o.Tags {
			cp.Tags[k] = v
		}
	}
	return &cp
}

// RunRequest describes work to fold into a step: the outputs to fetch,
// optional values to bind over named inputs for the duration of the
// step, and optional execution options. A RunRequest is immutable once
// constructed.
type RunRequest struct {
	fetches  Fetch
	bindings map[string]any
	options  *RunOptions
}

// RequestOption configures a RunRequest at construction.
type RequestOption func(*RunRequest)

// WithBindings supplies values to substitute for named inputs during the
// step. The map is copied.
func WithBindings(bindings map[string]any) RequestOption {
	return func(r *RunRequest) {
		if len(bindings) == 0 {
			return
		}
		r.bindings = make(map[string]any, len(bindings))
		for k, v := range bindings {
			r.bindings[k] = v
		}
	}
}

// WithOptions supplies step-level execution options. The options are
// copied.
func WithOptions(opts *RunOptions) RequestOption {
	return func(r *RunRequest) {
		r.options = opts.Clone()
	}
}

// NewRequest constructs a request for the given fetches. Bindings and
// options default to absent. The fetch tree is not validated here;
// structural correctness is the caller's and the engine's concern.
func NewRequest(fetches Fetch, opts ...RequestOption) *RunRequest {
	r := &RunRequest{fetches: fetches}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetches returns the requested outputs.
func (r *RunRequest) Fetches() Fetch { return r.fetches }

// Bindings returns a copy of the input bindings, or nil when absent.
func (r *RunRequest) Bindings() map[string]any {
	if r.bindings == nil {
		return nil
	}
	cp := make(map[string]any, len(r.bindings))
	for k, v := range r.bindings {
		cp[k] = v
	}
	return cp
}

// Options returns a copy of the execution options, or nil when absent.
func (r *RunRequest) Options() *RunOptions { return r.options.Clone() }
