package metrics

import "time"

// RunSummary is the aggregate view of one monitored run, handed to
// reporters when the run finishes.
type RunSummary struct {
	RunID     string                        `json:"run_id"`
	StartedAt time.Time                     `json:"started_at"`
	Elapsed   time.Duration                 `json:"elapsed"`
	Steps     int64                         `json:"steps"`
	Stopped   bool                          `json:"stopped"`
	Metrics   map[string]map[string]float64 `json:"metrics,omitempty"`
	Timing    map[string]float64            `json:"timing,omitempty"`
}

// Summarize builds a RunSummary from a registry snapshot.
func Summarize(runID string, startedAt time.Time, steps int64, stopped bool, reg *Registry, timing *TimingSink) *RunSummary {
	s := &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Elapsed:   time.Since(startedAt),
		Steps:     steps,
		Stopped:   stopped,
	}
	if reg != nil {
		s.Metrics = reg.Snapshot()
	}
	if timing != nil && timing.Count() > 0 {
		s.Timing = timing.Format()
	}
	return s
}
