package rest

import "time"

// ErrorResponse is the envelope for all error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready     bool   `json:"ready"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	RunID     string    `json:"run_id"`
	Step      int64     `json:"step"`
	Stopping  bool      `json:"stopping"`
	Closed    bool      `json:"closed"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// StopResponse is returned by POST /api/v1/stop.
type StopResponse struct {
	RunID    string `json:"run_id"`
	Stopping bool   `json:"stopping"`
}

// MetricsResponse is returned by GET /api/v1/metrics.
type MetricsResponse struct {
	RunID   string                        `json:"run_id"`
	Step    int64                         `json:"step"`
	Metrics map[string]map[string]float64 `json:"metrics"`
}

// StepEvent is one message on the step event stream.
type StepEvent struct {
	Type       string  `json:"type"`
	RunID      string  `json:"run_id"`
	Step       int64   `json:"step"`
	Timestamp  string  `json:"timestamp"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	Values     any     `json:"values,omitempty"`
}

// Event stream message types.
const (
	EventTypeStep     = "step"
	EventTypeComplete = "complete"
	EventTypeError    = "error"
)
