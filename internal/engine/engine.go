// Package engine provides an in-memory expression engine implementing
// monitor.Engine. Operations are JavaScript expressions (goja) evaluated
// over a shared state map; per-step bindings shadow state for the
// duration of one step. It stands in for a real compute-graph engine so
// the monitored loop, hooks and CLI have something concrete to drive.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/monitor"
)

// StepOp is the built-in operation returning the zero-based index of the
// current engine step. It cannot be redefined.
const StepOp = "step"

// Engine evaluates named JavaScript expressions over mutable state.
//
// Define is only legal before Finalize; Step only after. The goja
// runtime is not goroutine safe, so all evaluation is serialized.
type Engine struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	programs  map[string]*goja.Program
	sources   map[string]string
	state     map[string]any
	stepCount int64
	finalized bool
	closed    bool
}

// New creates an empty engine.
func New() *Engine {
	e := &Engine{
		vm:       goja.New(),
		programs: make(map[string]*goja.Program),
		sources:  make(map[string]string),
		state:    make(map[string]any),
	}
	return e
}

// Define registers a named operation whose value is the result of
// evaluating expr. Expressions see two globals: "state" (the shared
// mutable state map) and "bindings" (this step's input bindings), plus
// an input(name) helper that prefers a binding over state.
func (e *Engine) Define(name, expr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finalized {
		return fmt.Errorf("define %q: %w", name, ErrFinalized)
	}
	if name == StepOp {
		return fmt.Errorf("define %q: %w", name, ErrReservedOp)
	}
	if _, exists := e.programs[name]; exists {
		return fmt.Errorf("define %q: %w", name, ErrDuplicateOp)
	}

	program, err := goja.Compile(name, expr, false)
	if err != nil {
		return fmt.Errorf("compile op %q: %w", name, err)
	}
	e.programs[name] = program
	e.sources[name] = expr
	return nil
}

// SetState assigns an initial or updated state value. Unlike Define,
// state stays mutable for the life of the engine (ops mutate it too).
func (e *Engine) SetState(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state[name] = value
}

// State returns a copy of the current state map.
func (e *Engine) State() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[string]any, len(e.state))
	for k, v := range e.state {
		cp[k] = v
	}
	return cp
}

// Ops returns the names of all defined operations, including the
// built-in step op.
func (e *Engine) Ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]string, 0, len(e.programs)+1)
	ops = append(ops, StepOp)
	for name := range e.programs {
		ops = append(ops, name)
	}
	return ops
}

// Finalize implements monitor.Engine. After Finalize the operation set
// is immutable; finalizing twice is a no-op.
func (e *Engine) Finalize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalized = true
	return nil
}

// Finalized implements monitor.Engine.
func (e *Engine) Finalized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalized
}

// Step implements monitor.Engine. Ops are evaluated in the given order;
// expressions may mutate state, and later ops in the same step observe
// those mutations.
func (e *Engine) Step(ctx context.Context, ops []string, bindings map[string]any, opts *hook.RunOptions) (*monitor.StepOutput, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if !e.finalized {
		return nil, ErrNotFinalized
	}

	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Interrupt the VM when the context ends mid-expression.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-watchDone:
		}
	}()
	defer func() {
		close(watchDone)
		e.vm.ClearInterrupt()
	}()

	if bindings == nil {
		bindings = map[string]any{}
	}
	if err := e.vm.Set("state", e.state); err != nil {
		return nil, err
	}
	if err := e.vm.Set("bindings", bindings); err != nil {
		return nil, err
	}
	if err := e.vm.Set("input", func(name string) any {
		if v, ok := bindings[name]; ok {
			return v
		}
		return e.state[name]
	}); err != nil {
		return nil, err
	}

	trace := opts != nil && opts.Trace
	out := &monitor.StepOutput{Values: make(map[string]any, len(ops))}
	if trace {
		out.OpDurations = make(map[string]time.Duration, len(ops))
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if op == StepOp {
			out.Values[op] = e.stepCount
			continue
		}
		program, ok := e.programs[op]
		if !ok {
			return nil, fmt.Errorf("op %q: %w", op, ErrUnknownOp)
		}

		started := time.Now()
		value, err := e.vm.RunProgram(program)
		if err != nil {
			return nil, fmt.Errorf("op %q: %w", op, err)
		}
		if trace {
			out.OpDurations[op] = time.Since(started)
		}
		if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
			out.Values[op] = nil
		} else {
			out.Values[op] = value.Export()
		}
	}

	e.stepCount++
	return out, nil
}

// StepCount returns the number of completed engine steps.
func (e *Engine) StepCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepCount
}

// Close implements monitor.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
