package hooks

import (
	"time"

	"github.com/trainloop/trainloop/internal/metrics"
	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
)

// StepCounter tracks step throughput and latency. Every interval it
// logs the observed steps/sec and updates the metrics registry.
type StepCounter struct {
	hook.NopHook

	registry   *metrics.Registry
	timing     *metrics.TimingSink
	everySteps int64

	lastLogTime time.Time
	lastLogStep int64
}

// NewStepCounter creates a step counter that reports every everySteps
// steps. The registry may be nil, in which case only logging happens.
func NewStepCounter(registry *metrics.Registry, everySteps int64) *StepCounter {
	if everySteps <= 0 {
		everySteps = 100
	}
	return &StepCounter{
		registry:   registry,
		timing:     metrics.NewTimingSink(),
		everySteps: everySteps,
	}
}

// Timing exposes the step latency sink for summaries.
func (h *StepCounter) Timing() *metrics.TimingSink { return h.timing }

// Begin resets the throughput window.
func (h *StepCounter) Begin() error {
	h.lastLogTime = time.Now()
	h.lastLogStep = -1
	return nil
}

// AfterRun records the step duration and periodically logs throughput.
func (h *StepCounter) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	meta := result.Metadata()
	if meta == nil {
		return nil
	}

	h.timing.Record(meta.Duration)
	if h.registry != nil {
		h.registry.MustMetric("steps", metrics.Counter).Add(1)
	}

	completed := meta.Step + 1
	if completed%h.everySteps != 0 {
		return nil
	}

	now := time.Now()
	elapsed := now.Sub(h.lastLogTime).Seconds()
	if elapsed > 0 {
		rate := float64(meta.Step-h.lastLogStep) / elapsed
		logger.Info("%.1f steps/sec (step %d)", rate, meta.Step)
		if h.registry != nil {
			h.registry.MustMetric("steps_per_sec", metrics.Gauge).Add(rate)
		}
	}
	h.lastLogTime = now
	h.lastLogStep = meta.Step
	return nil
}
