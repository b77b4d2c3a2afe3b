package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainloop/trainloop/pkg/hook"
)

func TestDefine(t *testing.T) {
	t.Run("rejects defines after finalize", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Finalize())
		err := e.Define("loss", "state.loss")
		assert.ErrorIs(t, err, ErrFinalized)
	})

	t.Run("rejects duplicate op", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Define("loss", "1"))
		assert.ErrorIs(t, e.Define("loss", "2"), ErrDuplicateOp)
	})

	t.Run("rejects reserved step op", func(t *testing.T) {
		e := New()
		assert.ErrorIs(t, e.Define(StepOp, "0"), ErrReservedOp)
	})

	t.Run("rejects invalid javascript", func(t *testing.T) {
		e := New()
		assert.Error(t, e.Define("bad", "state."))
	})
}

func TestStep(t *testing.T) {
	newEngine := func(t *testing.T) *Engine {
		e := New()
		e.SetState("w", 1.0)
		require.NoError(t, e.Define("w", "state.w"))
		require.NoError(t, e.Define("train", "state.w = state.w - input('lr') * 0.5; state.w"))
		require.NoError(t, e.Finalize())
		return e
	}

	t.Run("requires finalize", func(t *testing.T) {
		e := New()
		_, err := e.Step(context.Background(), []string{StepOp}, nil, nil)
		assert.ErrorIs(t, err, ErrNotFinalized)
	})

	t.Run("evaluates expressions over state and bindings", func(t *testing.T) {
		e := newEngine(t)
		e.SetState("lr", 0.2)

		out, err := e.Step(context.Background(), []string{"train"}, nil, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.9, out.Values["train"].(float64), 1e-9)

		// Binding shadows state for one step.
		out, err = e.Step(context.Background(), []string{"train"}, map[string]any{"lr": 1.0}, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.4, out.Values["train"].(float64), 1e-9)

		// And only for that step.
		out, err = e.Step(context.Background(), []string{"train"}, nil, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, out.Values["train"].(float64), 1e-9)
	})

	t.Run("step op counts engine steps", func(t *testing.T) {
		e := newEngine(t)
		out, err := e.Step(context.Background(), []string{StepOp}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), out.Values[StepOp])

		out, err = e.Step(context.Background(), []string{StepOp}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), out.Values[StepOp])
		assert.Equal(t, int64(2), e.StepCount())
	})

	t.Run("later ops observe earlier mutations in the same step", func(t *testing.T) {
		e := New()
		e.SetState("n", int64(0))
		require.NoError(t, e.Define("bump", "state.n = state.n + 1; state.n"))
		require.NoError(t, e.Define("read", "state.n"))
		require.NoError(t, e.Finalize())

		// Sorted order: bump before read.
		out, err := e.Step(context.Background(), []string{"bump", "read"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, out.Values["bump"], out.Values["read"])
	})

	t.Run("unknown op fails the step", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.Step(context.Background(), []string{"nope"}, nil, nil)
		assert.ErrorIs(t, err, ErrUnknownOp)
	})

	t.Run("closed engine fails the step", func(t *testing.T) {
		e := newEngine(t)
		require.NoError(t, e.Close())
		_, err := e.Step(context.Background(), []string{StepOp}, nil, nil)
		assert.ErrorIs(t, err, ErrEngineClosed)
	})

	t.Run("tracing records per-op durations", func(t *testing.T) {
		e := newEngine(t)
		out, err := e.Step(context.Background(), []string{"w"}, nil, &hook.RunOptions{Trace: true})
		require.NoError(t, err)
		_, ok := out.OpDurations["w"]
		assert.True(t, ok)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		e := newEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Step(ctx, []string{"w"}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("null and undefined export as nil", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Define("nothing", "null"))
		require.NoError(t, e.Define("undef", "undefined"))
		require.NoError(t, e.Finalize())

		out, err := e.Step(context.Background(), []string{"nothing", "undef"}, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, out.Values["nothing"])
		assert.Nil(t, out.Values["undef"])
	})
}

func TestSnapshotRestore(t *testing.T) {
	t.Run("round-trips step counter and state", func(t *testing.T) {
		e := New()
		e.SetState("w", 2.5)
		require.NoError(t, e.Define("w", "state.w"))
		require.NoError(t, e.Finalize())
		_, err := e.Step(context.Background(), []string{"w"}, nil, nil)
		require.NoError(t, err)

		data, err := e.Snapshot()
		require.NoError(t, err)

		restored := New()
		require.NoError(t, restored.Define("w", "state.w"))
		require.NoError(t, restored.Finalize())
		require.NoError(t, restored.Restore(data))

		assert.Equal(t, int64(1), restored.StepCount())
		out, err := restored.Step(context.Background(), []string{"w", StepOp}, nil, nil)
		require.NoError(t, err)
		assert.InDelta(t, 2.5, out.Values["w"].(float64), 1e-9)
		assert.Equal(t, int64(1), out.Values[StepOp])
	})

	t.Run("rejects malformed snapshots", func(t *testing.T) {
		e := New()
		assert.ErrorIs(t, e.Restore([]byte("{nope")), ErrBadSnapshot)
		assert.ErrorIs(t, e.Restore([]byte(`[]`)), ErrBadSnapshot)
		assert.ErrorIs(t, e.Restore([]byte(`{"state":{}}`)), ErrBadSnapshot)
	})
}

func TestTimeoutOption(t *testing.T) {
	e := New()
	require.NoError(t, e.Define("spin", "while(true){}"))
	require.NoError(t, e.Finalize())

	start := time.Now()
	_, err := e.Step(context.Background(), []string{"spin"}, nil, &hook.RunOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
