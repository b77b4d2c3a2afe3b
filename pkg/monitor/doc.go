// Package monitor owns the step loop that pkg/hook extends.
//
// A Session wraps an Engine and an ordered list of hooks. Constructing
// the session runs every hook's Begin and finalizes the engine graph;
// each Session.Run executes one monitored step: hooks contribute extra
// fetches and bindings, the merged step runs once, and every hook sees
// exactly its own slice of the results. Hooks stop the loop
// cooperatively through the per-iteration RunContext; the flag takes
// effect at the iteration boundary, never mid-step.
package monitor
