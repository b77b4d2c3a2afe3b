package hooks

import (
	"fmt"

	"github.com/trainloop/trainloop/pkg/hook"
)

// StopAtStep requests a stop once the step counter reaches a target.
// The target is either absolute (StopAtStepLast) or relative to the
// step at which the run starts (StopAtStepCount).
type StopAtStep struct {
	hook.NopHook

	stepOp   string
	numSteps int64
	lastStep int64
	armed    bool
}

// StopAtStepCount stops after numSteps more steps have completed.
func StopAtStepCount(numSteps int64) (*StopAtStep, error) {
	if numSteps <= 0 {
		return nil, fmt.Errorf("%w: numSteps must be positive, got %d", ErrInvalidStepTarget, numSteps)
	}
	return &StopAtStep{stepOp: DefaultStepOp, numSteps: numSteps}, nil
}

// StopAtStepLast stops once the step counter passes lastStep.
func StopAtStepLast(lastStep int64) (*StopAtStep, error) {
	if lastStep <= 0 {
		return nil, fmt.Errorf("%w: lastStep must be positive, got %d", ErrInvalidStepTarget, lastStep)
	}
	return &StopAtStep{stepOp: DefaultStepOp, lastStep: lastStep, armed: true}, nil
}

// SetStepOp overrides the op used to read the step counter.
func (h *StopAtStep) SetStepOp(op string) { h.stepOp = op }

// Begin resets the relative target so the hook can be reused.
func (h *StopAtStep) Begin() error {
	if h.numSteps > 0 {
		h.armed = false
	}
	return nil
}

// BeforeRun asks for the step counter alongside the caller's fetches.
func (h *StopAtStep) BeforeRun(rc *hook.RunContext) (*hook.RunRequest, error) {
	return hook.NewRequest(hook.Op(h.stepOp)), nil
}

// AfterRun checks the fetched step against the target.
func (h *StopAtStep) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	step, ok := toInt64(result.Results().Scalar())
	if !ok {
		return fmt.Errorf("step op %q did not produce an integer", h.stepOp)
	}

	// The fetched value is the step index before this run completed.
	completed := step + 1

	if !h.armed {
		h.lastStep = step + h.numSteps
		h.armed = true
	}

	if completed >= h.lastStep {
		rc.RequestStop()
	}
	return nil
}
