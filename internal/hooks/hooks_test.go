package hooks

import (
	"context"

	"github.com/trainloop/trainloop/pkg/hook"
)

// stubSession satisfies hook.Session for hooks that never actually run
// anything through it.
type stubSession struct{}

func (stubSession) Run(ctx context.Context, req *hook.RunRequest) (*hook.RunResult, error) {
	return nil, nil
}

func runMeta(step int64) *hook.RunMetadata {
	return &hook.RunMetadata{
		RunID: "run-test",
		Step:  step,
	}
}

func newContext() *hook.RunContext {
	return hook.NewRunContext(hook.NewRequest(hook.Fetch{}), stubSession{})
}
