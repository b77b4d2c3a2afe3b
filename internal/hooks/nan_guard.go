package hooks

import (
	"fmt"
	"math"

	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
)

// NaNGuard watches one scalar op and reacts when it turns NaN or
// infinite. With failOnNonFinite set, the bad value aborts the run;
// otherwise the guard logs it and requests a graceful stop.
type NaNGuard struct {
	hook.NopHook

	op              string
	failOnNonFinite bool
}

// NewNaNGuard watches the named op for non-finite values.
func NewNaNGuard(op string, failOnNonFinite bool) (*NaNGuard, error) {
	if op == "" {
		return nil, fmt.Errorf("nan guard needs an op name")
	}
	return &NaNGuard{op: op, failOnNonFinite: failOnNonFinite}, nil
}

// BeforeRun contributes the watched op.
func (h *NaNGuard) BeforeRun(rc *hook.RunContext) (*hook.RunRequest, error) {
	return hook.NewRequest(hook.Op(h.op)), nil
}

// AfterRun checks the fetched value.
func (h *NaNGuard) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	f, ok := toFloat64(result.Results().Scalar())
	if !ok {
		// Non-numeric ops are not this hook's business.
		return nil
	}

	if !math.IsNaN(f) && !math.IsInf(f, 0) {
		return nil
	}

	step := int64(-1)
	if meta := result.Metadata(); meta != nil {
		step = meta.Step
	}

	if h.failOnNonFinite {
		return fmt.Errorf("%w: op %q produced %v at step %d", ErrNonFiniteValue, h.op, f, step)
	}

	logger.Error("op %q produced %v at step %d, requesting stop", h.op, f, step)
	rc.RequestStop()
	return nil
}
