// Package hook defines the extension-point contract that lets auxiliary
// logic piggyback on a monitored step loop.
//
// A Hook is notified at four points of the loop owned by pkg/monitor:
//   - Begin: once, before the first step, while the engine graph is
//     still mutable
//   - BeforeRun: before each step; may contribute extra fetches and
//     bindings to the step about to execute
//   - AfterRun: after each step, with exactly the slice of results the
//     hook requested; may request a cooperative stop
//   - End: once, after the loop exits, with the soon-to-be-closed
//     session handle
//
// Hooks compose: the loop invokes each registered hook's callback in
// registration order, one phase at a time, with no overlap.
package hook

import "context"

// Session executes a request against the underlying engine. It is the
// opaque handle carried by RunContext and handed to End; the loop owns
// its lifetime and hooks must not retain it beyond the callback.
type Session interface {
	Run(ctx context.Context, req *RunRequest) (*RunResult, error)
}

// Hook extends calls to a monitored session's step loop.
//
// The loop calls Begin exactly once before the first step, then
// BeforeRun/AfterRun as a pair once per step, then End exactly once
// after the loop exits, whether it exited normally or due to a stop
// request. Errors returned from any callback are propagated to the
// loop's caller unmodified; this layer neither retries nor suppresses.
type Hook interface {
	// Begin is called once before the session runs its first step.
	// The engine graph is still mutable: this is the only point where a
	// hook may define additional operations. Begin must be idempotent
	// with respect to graph structure; a second Begin on an already
	// prepared graph must not change it.
	Begin() error

	// BeforeRun is called before each step. The hook may inspect
	// rc.OriginalRequest and return a request whose fetches and
	// bindings are merged into the step about to execute. Returning nil
	// means no contribution this step. The graph is finalized by now
	// and must not be modified.
	BeforeRun(rc *RunContext) (*RunRequest, error)

	// AfterRun is called after each step with the portion of the step's
	// results corresponding to the fetches this hook requested in the
	// paired BeforeRun call. The hook may call rc.RequestStop to end
	// the loop at the iteration boundary.
	AfterRun(rc *RunContext, result *RunResult) error

	// End is called once after the loop exits. The session is still
	// usable for final work (for example persisting state) and will be
	// closed by the loop once every hook's End returned.
	End(sess Session) error
}

// NopHook is a Hook that does nothing. Embed it to implement only the
// callbacks a hook actually needs.
type NopHook struct{}

// Begin implements Hook.
func (NopHook) Begin() error { return nil }

// BeforeRun implements Hook. It contributes nothing to the step.
func (NopHook) BeforeRun(*RunContext) (*RunRequest, error) { return nil, nil }

// AfterRun implements Hook.
func (NopHook) AfterRun(*RunContext, *RunResult) error { return nil }

// End implements Hook.
func (NopHook) End(Session) error { return nil }

var _ Hook = NopHook{}
