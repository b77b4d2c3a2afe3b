package hooks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainloop/trainloop/pkg/hook"
)

type fakeSnapshotter struct {
	calls int
	err   error
}

func (f *fakeSnapshotter) Snapshot() ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf(`{"snapshot":%d}`, f.calls)), nil
}

func stepResult(step int64) *hook.RunResult {
	return hook.NewResult(hook.ScalarValue(nil), &hook.RunOptions{}, runMeta(step))
}

func TestCheckpointSaver(t *testing.T) {
	t.Run("saves on step boundaries and at end", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "ckpt")
		src := &fakeSnapshotter{}
		h, err := NewCheckpointSaver(src, dir, 2)
		require.NoError(t, err)
		require.NoError(t, h.Begin())

		// Step 0 completes 1 step: below the boundary.
		require.NoError(t, h.AfterRun(newContext(), stepResult(0)))
		assert.Empty(t, h.LastPath())

		// Step 1 completes 2 steps: checkpoint.
		require.NoError(t, h.AfterRun(newContext(), stepResult(1)))
		want := filepath.Join(dir, "checkpoint-00000002.json")
		assert.Equal(t, want, h.LastPath())

		data, err := os.ReadFile(want)
		require.NoError(t, err)
		assert.Contains(t, string(data), "snapshot")

		// Step 2 then End: final checkpoint for 3 completed steps.
		require.NoError(t, h.AfterRun(newContext(), stepResult(2)))
		require.NoError(t, h.End(stubSession{}))
		assert.Equal(t, filepath.Join(dir, "checkpoint-00000003.json"), h.LastPath())
	})

	t.Run("begin creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		h, err := NewCheckpointSaver(&fakeSnapshotter{}, dir, 1)
		require.NoError(t, err)

		require.NoError(t, h.Begin())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		// Begin is idempotent.
		assert.NoError(t, h.Begin())
	})

	t.Run("snapshot errors surface", func(t *testing.T) {
		src := &fakeSnapshotter{err: errors.New("no state")}
		h, err := NewCheckpointSaver(src, t.TempDir(), 1)
		require.NoError(t, err)
		require.NoError(t, h.Begin())

		assert.Error(t, h.AfterRun(newContext(), stepResult(0)))
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewCheckpointSaver(nil, "dir", 1)
		assert.Error(t, err)

		_, err = NewCheckpointSaver(&fakeSnapshotter{}, "", 1)
		assert.Error(t, err)
	})
}
