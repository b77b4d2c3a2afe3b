package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/trainloop/trainloop/pkg/hook"
)

// Session drives a finalized engine through monitored steps.
//
// The step loop itself is single-threaded: hooks run sequentially in
// registration order with no overlap. Only the cooperative stop flag
// and the step counter may be touched from other goroutines (the REST
// control surface), so those two are atomic; everything else assumes
// one driver.
type Session struct {
	engine Engine
	hooks  []hook.Hook
	runID  string

	startedAt time.Time
	step      atomic.Int64
	stop      atomic.Bool

	closeMu sync.Mutex
	closed  bool
}

// Status is a point-in-time snapshot of a session for observers.
type Status struct {
	RunID     string        `json:"run_id"`
	Step      int64         `json:"step"`
	Stopping  bool          `json:"stopping"`
	Closed    bool          `json:"closed"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// NewSession creates a monitored session over the engine.
//
// Every hook's Begin runs in registration order; this is the last point
// at which the engine graph may change. The engine is finalized before
// NewSession returns, so a second NewSession over an already finalized
// engine keeps the Begin idempotency contract observable: hooks must
// not assume the graph is still mutable.
func NewSession(engine Engine, hooks ...hook.Hook) (*Session, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	for i, h := range hooks {
		if err := h.Begin(); err != nil {
			return nil, fmt.Errorf("hook %d begin: %w", i, err)
		}
	}
	if !engine.Finalized() {
		if err := engine.Finalize(); err != nil {
			return nil, fmt.Errorf("finalize engine: %w", err)
		}
	}

	s := &Session{
		engine:    engine,
		hooks:     hooks,
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}
	return s, nil
}

// RunID identifies this monitored run.
func (s *Session) RunID() string { return s.runID }

// StepCount returns the number of monitored steps completed so far.
func (s *Session) StepCount() int64 { return s.step.Load() }

// ShouldStop reports whether the loop should terminate before starting
// another iteration.
func (s *Session) ShouldStop() bool { return s.stop.Load() }

// RequestStop asks the loop to terminate at the next iteration boundary.
// It serves externally controlled stops (signals, the REST control
// surface) and merges with hook stop requests by logical OR.
func (s *Session) RequestStop() { s.stop.Store(true) }

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.closeMu.Lock()
	closed := s.closed
	s.closeMu.Unlock()
	return Status{
		RunID:     s.runID,
		Step:      s.step.Load(),
		Stopping:  s.stop.Load(),
		Closed:    closed,
		StartedAt: s.startedAt,
		Elapsed:   time.Since(s.startedAt),
	}
}

// Run executes one monitored step.
//
// A fresh RunContext is created for the iteration. Every hook's
// BeforeRun runs first and may contribute a request; the contributions
// merge with req into a single engine step. After the step, every
// hook's AfterRun receives a result shaped like the fetches that hook
// requested (hooks that contributed nothing see a zero value). Once all
// hooks ran, a stop request on the context latches into the session.
//
// The returned result carries the caller's own slice of the outputs,
// shaped like req's fetch tree. Hook errors propagate unmodified; the
// step does not retry.
func (s *Session) Run(ctx context.Context, req *hook.RunRequest) (*hook.RunResult, error) {
	s.closeMu.Lock()
	closed := s.closed
	s.closeMu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	rc := hook.NewRunContext(req, rawSession{s: s})

	contribs := make([]*hook.RunRequest, len(s.hooks))
	for i, h := range s.hooks {
		contrib, err := h.BeforeRun(rc)
		if err != nil {
			return nil, fmt.Errorf("hook %d before run: %w", i, err)
		}
		contribs[i] = contrib
	}

	merged, err := mergeRequests(req, contribs)
	if err != nil {
		return nil, err
	}

	stepIndex := s.step.Load()
	started := time.Now()
	out, err := s.engine.Step(ctx, merged.ops, merged.bindings, merged.options)
	if err != nil {
		return nil, fmt.Errorf("step %d: %w", stepIndex, err)
	}

	meta := &hook.RunMetadata{
		RunID:       s.runID,
		Step:        stepIndex,
		StartedAt:   started,
		Duration:    time.Since(started),
		Ops:         merged.ops,
		OpDurations: out.OpDurations,
	}

	var afterErr error
	for i, h := range s.hooks {
		var slice hook.Value
		if contribs[i] != nil {
			slice = buildValue(contribs[i].Fetches(), out.Values)
		}
		result := hook.NewResult(slice, merged.options, meta)
		if err := h.AfterRun(rc, result); err != nil && afterErr == nil {
			afterErr = fmt.Errorf("hook %d after run: %w", i, err)
		}
	}

	// The stop flag is checked once per iteration, after every hook ran.
	if rc.StopRequested() {
		s.stop.Store(true)
	}
	s.step.Add(1)

	if afterErr != nil {
		return nil, afterErr
	}
	return hook.NewResult(buildValue(req.Fetches(), out.Values), merged.options, meta), nil
}

// Close runs every hook's End with a raw (hookless) session handle and
// then closes the engine. Close is idempotent; later calls return nil.
func (s *Session) Close(ctx context.Context) error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	var errs []error
	for i, h := range s.hooks {
		if err := h.End(rawSession{s: s}); err != nil {
			errs = append(errs, fmt.Errorf("hook %d end: %w", i, err))
		}
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	return errors.Join(errs...)
}

// rawSession executes requests directly against the engine, bypassing
// the hooks. It is the opaque handle hooks see on RunContext and in End.
type rawSession struct {
	s *Session
}

// Run implements hook.Session. Raw runs do not advance the monitored
// step counter and never trigger hook callbacks.
func (r rawSession) Run(ctx context.Context, req *hook.RunRequest) (*hook.RunResult, error) {
	fetches := req.Fetches()
	started := time.Now()
	out, err := r.s.engine.Step(ctx, fetches.Ops(), req.Bindings(), req.Options())
	if err != nil {
		return nil, err
	}
	meta := &hook.RunMetadata{
		RunID:       r.s.runID,
		Step:        r.s.step.Load(),
		StartedAt:   started,
		Duration:    time.Since(started),
		Ops:         fetches.Ops(),
		OpDurations: out.OpDurations,
	}
	return hook.NewResult(buildValue(fetches, out.Values), req.Options(), meta), nil
}
