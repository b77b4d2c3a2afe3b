package hooks

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainloop/trainloop/internal/metrics"
	"github.com/trainloop/trainloop/internal/reporter"
	"github.com/trainloop/trainloop/pkg/hook"
)

type capturingReporter struct {
	summaries []*metrics.RunSummary
	flushed   int
}

func (c *capturingReporter) Name() string                               { return "capturing" }
func (c *capturingReporter) Init(context.Context, map[string]any) error { return nil }
func (c *capturingReporter) Flush(context.Context) error                { c.flushed++; return nil }
func (c *capturingReporter) Close(context.Context) error                { return nil }
func (c *capturingReporter) Report(_ context.Context, s *metrics.RunSummary) error {
	c.summaries = append(c.summaries, s)
	return nil
}

func summaryResult(step int64, loss, acc float64) *hook.RunResult {
	values := hook.MapValue(map[string]hook.Value{
		"loss": hook.ScalarValue(loss),
		"acc":  hook.ScalarValue(acc),
	})
	return hook.NewResult(values, &hook.RunOptions{}, runMeta(step))
}

func TestSummary(t *testing.T) {
	t.Run("fetches tracked ops", func(t *testing.T) {
		reg := metrics.NewRegistry()
		h, err := NewSummary(reg, nil, "loss", "acc")
		require.NoError(t, err)

		req, err := h.BeforeRun(newContext())
		require.NoError(t, err)

		ops := req.Fetches().Ops()
		sort.Strings(ops)
		assert.Equal(t, []string{"acc", "loss"}, ops)
	})

	t.Run("records scalars into the registry", func(t *testing.T) {
		reg := metrics.NewRegistry()
		h, err := NewSummary(reg, nil, "loss", "acc")
		require.NoError(t, err)
		require.NoError(t, h.Begin())

		require.NoError(t, h.AfterRun(newContext(), summaryResult(0, 0.9, 0.1)))
		require.NoError(t, h.AfterRun(newContext(), summaryResult(1, 0.5, 0.3)))

		snapshot := reg.Snapshot()
		require.Contains(t, snapshot, "loss")
		assert.Equal(t, float64(2), snapshot["loss"]["count"])
		assert.Equal(t, 0.5, snapshot["loss"]["min"])
		assert.Equal(t, 0.9, snapshot["loss"]["max"])
	})

	t.Run("skips missing and non-numeric values", func(t *testing.T) {
		reg := metrics.NewRegistry()
		h, err := NewSummary(reg, nil, "loss", "acc", "label")
		require.NoError(t, err)
		require.NoError(t, h.Begin())

		values := hook.MapValue(map[string]hook.Value{
			"loss":  hook.ScalarValue(0.4),
			"label": hook.ScalarValue("cat"),
		})
		result := hook.NewResult(values, &hook.RunOptions{}, runMeta(0))
		require.NoError(t, h.AfterRun(newContext(), result))

		snapshot := reg.Snapshot()
		require.Contains(t, snapshot, "loss")
		assert.Equal(t, float64(1), snapshot["loss"]["count"])
		assert.NotContains(t, snapshot, "acc")
		assert.NotContains(t, snapshot, "label")
	})

	t.Run("end report includes step latency", func(t *testing.T) {
		reg := metrics.NewRegistry()
		capture := &capturingReporter{}
		manager := reporter.NewManager(nil)
		require.NoError(t, manager.AddReporter(capture))

		counter := NewStepCounter(reg, 100)
		require.NoError(t, counter.Begin())

		h, err := NewSummary(reg, manager, "loss")
		require.NoError(t, err)
		h.SetTiming(counter.Timing())
		require.NoError(t, h.Begin())

		rc := newContext()
		result := hook.NewResult(
			hook.MapValue(map[string]hook.Value{"loss": hook.ScalarValue(0.9)}),
			&hook.RunOptions{}, timedMeta(0, 4*time.Millisecond))
		require.NoError(t, counter.AfterRun(rc, result))
		require.NoError(t, h.AfterRun(rc, result))
		require.NoError(t, h.End(stubSession{}))

		require.Len(t, capture.summaries, 1)
		timing := capture.summaries[0].Timing
		require.NotEmpty(t, timing)
		assert.Equal(t, float64(1), timing["count"])
		assert.Greater(t, timing["max_ms"], 0.0)
	})

	t.Run("end reports through the manager", func(t *testing.T) {
		reg := metrics.NewRegistry()
		capture := &capturingReporter{}
		manager := reporter.NewManager(nil)
		require.NoError(t, manager.AddReporter(capture))

		h, err := NewSummary(reg, manager, "loss")
		require.NoError(t, err)
		require.NoError(t, h.Begin())
		require.NoError(t, h.AfterRun(newContext(), summaryResult(0, 0.9, 0.1)))
		require.NoError(t, h.End(stubSession{}))

		require.Len(t, capture.summaries, 1)
		got := capture.summaries[0]
		assert.Equal(t, "run-test", got.RunID)
		assert.Equal(t, int64(1), got.Steps)
		assert.Contains(t, got.Metrics, "loss")
		assert.Equal(t, 1, capture.flushed)
	})

	t.Run("end without manager is a no-op", func(t *testing.T) {
		reg := metrics.NewRegistry()
		h, err := NewSummary(reg, nil, "loss")
		require.NoError(t, err)
		assert.NoError(t, h.End(stubSession{}))
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewSummary(nil, nil, "loss")
		assert.Error(t, err)

		_, err = NewSummary(metrics.NewRegistry(), nil)
		assert.Error(t, err)
	})
}
