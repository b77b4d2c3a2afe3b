package hooks

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
)

// ValueLogger fetches a set of values every N steps and logs them.
// When JSONPath expressions are given, only the matching parts of the
// fetched tree are logged.
type ValueLogger struct {
	hook.NopHook

	fetches    hook.Fetch
	everySteps int64
	paths      []compiledPath

	iter    int64
	pending bool
}

type compiledPath struct {
	src  string
	expr jp.Expr
}

// NewValueLogger logs the given fetches every everySteps steps.
// Paths are JSONPath expressions evaluated against the fetched values.
func NewValueLogger(fetches hook.Fetch, everySteps int64, paths ...string) (*ValueLogger, error) {
	if fetches.IsZero() {
		return nil, fmt.Errorf("value logger needs at least one fetch")
	}
	if everySteps <= 0 {
		everySteps = 1
	}

	compiled := make([]compiledPath, 0, len(paths))
	for _, p := range paths {
		expr, err := jp.ParseString(p)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", p, err)
		}
		compiled = append(compiled, compiledPath{src: p, expr: expr})
	}

	return &ValueLogger{
		fetches:    fetches,
		everySteps: everySteps,
		paths:      compiled,
	}, nil
}

// Begin resets the logging cadence.
func (h *ValueLogger) Begin() error {
	h.iter = 0
	h.pending = false
	return nil
}

// BeforeRun contributes the fetches on logging iterations only.
func (h *ValueLogger) BeforeRun(rc *hook.RunContext) (*hook.RunRequest, error) {
	if h.iter%h.everySteps != 0 {
		return nil, nil
	}
	h.pending = true
	return hook.NewRequest(h.fetches), nil
}

// AfterRun logs the fetched values when this iteration contributed.
func (h *ValueLogger) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	h.iter++
	if !h.pending {
		return nil
	}
	h.pending = false

	data := result.Results().Interface()
	step := int64(-1)
	if meta := result.Metadata(); meta != nil {
		step = meta.Step
	}

	if len(h.paths) == 0 {
		logger.Info("step %d: %s", step, oj.JSON(data))
		return nil
	}

	for _, p := range h.paths {
		matches := p.expr.Get(data)
		var rendered string
		switch len(matches) {
		case 0:
			rendered = "<no match>"
		case 1:
			rendered = oj.JSON(matches[0])
		default:
			rendered = oj.JSON(matches)
		}
		logger.Info("step %d: %s = %s", step, p.src, rendered)
	}
	return nil
}
