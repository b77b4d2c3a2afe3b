package hooks

import "errors"

var (
	// ErrNonFiniteValue indicates a watched op produced NaN or Inf.
	ErrNonFiniteValue = errors.New("non-finite value")

	// ErrInvalidStepTarget indicates a stop hook was built with a
	// non-positive step count.
	ErrInvalidStepTarget = errors.New("invalid step target")

	// ErrBadScriptResult indicates a script hook callback returned a
	// value that cannot be interpreted as a step request.
	ErrBadScriptResult = errors.New("bad script result")
)
