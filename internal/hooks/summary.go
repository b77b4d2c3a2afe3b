package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/trainloop/trainloop/internal/metrics"
	"github.com/trainloop/trainloop/internal/reporter"
	"github.com/trainloop/trainloop/pkg/hook"
)

// Summary folds scalar ops into the metrics registry on every step and
// delivers the final registry snapshot through the reporter manager
// when the session ends.
type Summary struct {
	hook.NopHook

	registry *metrics.Registry
	manager  *reporter.Manager
	timing   *metrics.TimingSink
	fetches  hook.Fetch
	ops      []string

	runID     string
	startedAt time.Time
	steps     int64
	stopped   bool
}

// NewSummary tracks the named scalar ops. The manager may be nil, in
// which case the hook only feeds the registry.
func NewSummary(registry *metrics.Registry, manager *reporter.Manager, ops ...string) (*Summary, error) {
	if registry == nil {
		return nil, fmt.Errorf("summary hook needs a metrics registry")
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("summary hook needs at least one op")
	}

	entries := make(map[string]hook.Fetch, len(ops))
	for _, op := range ops {
		entries[op] = hook.Op(op)
	}

	return &Summary{
		registry: registry,
		manager:  manager,
		fetches:  hook.Map(entries),
		ops:      ops,
	}, nil
}

// SetTiming attaches a step latency sink whose statistics are included
// in the final report, typically the StepCounter's sink.
func (h *Summary) SetTiming(timing *metrics.TimingSink) {
	h.timing = timing
}

// Begin resets the run window.
func (h *Summary) Begin() error {
	h.startedAt = time.Now()
	h.steps = 0
	h.stopped = false
	return nil
}

// BeforeRun contributes the tracked ops.
func (h *Summary) BeforeRun(rc *hook.RunContext) (*hook.RunRequest, error) {
	return hook.NewRequest(h.fetches), nil
}

// AfterRun records each tracked scalar into the registry.
func (h *Summary) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	values := result.Results()
	for _, op := range h.ops {
		v, ok := values.Key(op)
		if !ok {
			continue
		}
		if f, ok := toFloat64(v.Scalar()); ok {
			h.registry.MustMetric(op, metrics.Trend).Add(f)
		}
	}

	if meta := result.Metadata(); meta != nil {
		h.runID = meta.RunID
		h.steps = meta.Step + 1
	}
	h.stopped = rc.StopRequested()
	return nil
}

// End reports the aggregated run summary.
func (h *Summary) End(sess hook.Session) error {
	if h.manager == nil {
		return nil
	}

	ctx := context.Background()
	summary := metrics.Summarize(h.runID, h.startedAt, h.steps, h.stopped, h.registry, h.timing)
	if err := h.manager.Report(ctx, summary); err != nil {
		return fmt.Errorf("report summary: %w", err)
	}
	return h.manager.Flush(ctx)
}
