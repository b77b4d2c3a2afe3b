package hooks

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
)

// Snapshotter captures engine state as a portable byte blob.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

// CheckpointSaver writes engine snapshots to a directory every N
// completed steps and once more when the session ends.
type CheckpointSaver struct {
	hook.NopHook

	src        Snapshotter
	dir        string
	everySteps int64

	lastStep int64
	lastPath string
}

// NewCheckpointSaver saves snapshots from src into dir every
// everySteps steps.
func NewCheckpointSaver(src Snapshotter, dir string, everySteps int64) (*CheckpointSaver, error) {
	if src == nil {
		return nil, fmt.Errorf("checkpoint saver needs a snapshot source")
	}
	if dir == "" {
		return nil, fmt.Errorf("checkpoint saver needs a directory")
	}
	if everySteps <= 0 {
		everySteps = 100
	}
	return &CheckpointSaver{src: src, dir: dir, everySteps: everySteps, lastStep: -1}, nil
}

// LastPath returns the most recently written checkpoint file.
func (h *CheckpointSaver) LastPath() string { return h.lastPath }

// Begin makes sure the checkpoint directory exists. Safe to call more
// than once.
func (h *CheckpointSaver) Begin() error {
	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	return nil
}

// AfterRun saves a snapshot on checkpoint boundaries.
func (h *CheckpointSaver) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	meta := result.Metadata()
	if meta == nil {
		return nil
	}
	h.lastStep = meta.Step

	completed := meta.Step + 1
	if completed%h.everySteps != 0 {
		return nil
	}
	return h.save(completed)
}

// End writes a final snapshot so no progress is lost.
func (h *CheckpointSaver) End(sess hook.Session) error {
	return h.save(h.lastStep + 1)
}

func (h *CheckpointSaver) save(step int64) error {
	data, err := h.src.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot at step %d: %w", step, err)
	}

	path := filepath.Join(h.dir, fmt.Sprintf("checkpoint-%08d.json", step))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	h.lastPath = path
	logger.Debug("saved checkpoint %s", path)
	return nil
}
