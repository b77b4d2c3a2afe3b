package hook

// RunContext provides information about the step being made: the request
// the top-level caller originally asked for (not any hook's
// contribution), the session executing it, and a cooperative stop flag.
//
// Exactly one RunContext exists per loop iteration; it does not survive
// across iterations. The same context is passed to BeforeRun and the
// paired AfterRun of every hook.
type RunContext struct {
	original *RunRequest
	session  Session
	stop     bool
}

// NewRunContext creates the context for one loop iteration.
func NewRunContext(original *RunRequest, sess Session) *RunContext {
	return &RunContext{original: original, session: sess}
}

// OriginalRequest returns the request the top-level caller passed to the
// step, before any hook contributions were merged in.
func (rc *RunContext) OriginalRequest() *RunRequest { return rc.original }

// Session returns the session that will execute, or just executed, the
// step.
func (rc *RunContext) Session() Session { return rc.session }

// StopRequested reports whether any hook asked the loop to terminate.
func (rc *RunContext) StopRequested() bool { return rc.stop }

// RequestStop asks the owning loop to terminate before starting another
// iteration. The flag is monotonic: once set it stays set for the life
// of the context, and calling RequestStop again has no further effect.
// The loop checks the flag once per iteration, after every hook's
// AfterRun has returned.
func (rc *RunContext) RequestStop() { rc.stop = true }
