package engine

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// snapshot is the JSON shape of a persisted engine checkpoint.
type snapshot struct {
	Step  int64          `json:"step"`
	State map[string]any `json:"state"`
}

// Snapshot serializes the engine's step counter and state to JSON.
// Defined ops are part of the program, not the snapshot.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := make(map[string]any, len(e.state))
	for k, v := range e.state {
		state[k] = v
	}
	return oj.Marshal(snapshot{Step: e.stepCount, State: state})
}

// Restore replaces the step counter and state from a snapshot produced
// by Snapshot. The op set is untouched.
func (e *Engine) Restore(data []byte) error {
	parsed, err := oj.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	root, ok := parsed.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: expected object, got %T", ErrBadSnapshot, parsed)
	}

	step, ok := root["step"].(int64)
	if !ok {
		return fmt.Errorf("%w: missing step counter", ErrBadSnapshot)
	}
	state := make(map[string]any)
	if raw, present := root["state"]; present {
		m, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: state is not an object", ErrBadSnapshot)
		}
		state = m
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepCount = step
	e.state = state
	return nil
}
