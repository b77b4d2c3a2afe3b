package monitor

import "errors"

var (
	// ErrNilEngine is returned when a session is created without an engine.
	ErrNilEngine = errors.New("engine is nil")

	// ErrSessionClosed is returned when running a step on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrBindingConflict is returned when two requesters bind the same
	// input name in the same step. Collisions are rejected rather than
	// silently preferring one writer.
	ErrBindingConflict = errors.New("conflicting input binding")
)
