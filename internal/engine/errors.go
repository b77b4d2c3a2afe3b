package engine

import "errors"

var (
	// ErrFinalized is returned when defining an op after Finalize.
	ErrFinalized = errors.New("engine is finalized")

	// ErrNotFinalized is returned when stepping an engine whose graph is
	// still mutable.
	ErrNotFinalized = errors.New("engine is not finalized")

	// ErrEngineClosed is returned when stepping a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrUnknownOp is returned when a step requests an undefined op.
	ErrUnknownOp = errors.New("unknown op")

	// ErrDuplicateOp is returned when defining an op name twice.
	ErrDuplicateOp = errors.New("op already defined")

	// ErrReservedOp is returned when defining an op with a built-in name.
	ErrReservedOp = errors.New("op name is reserved")

	// ErrBadSnapshot is returned when restoring a malformed snapshot.
	ErrBadSnapshot = errors.New("malformed snapshot")
)
