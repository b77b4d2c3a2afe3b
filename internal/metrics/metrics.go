// Package metrics provides the sink-based metric aggregation used by the
// standard hooks and exposed by the control surface.
package metrics

import (
	"sync"
	"time"
)

// Type classifies how a metric aggregates samples.
type Type string

const (
	// Counter only accumulates.
	Counter Type = "counter"
	// Gauge tracks the latest value plus min/max/avg.
	Gauge Type = "gauge"
	// Rate tracks a pass/fail ratio (non-zero samples pass).
	Rate Type = "rate"
	// Trend tracks distribution statistics with percentiles.
	Trend Type = "trend"
)

// Metric is a named series with an aggregating sink.
type Metric struct {
	Name string            `json:"name"`
	Type Type              `json:"type"`
	Tags map[string]string `json:"tags,omitempty"`
	Sink Sink              `json:"-"`
}

// Add records one sample into the metric's sink.
func (m *Metric) Add(value float64) {
	m.Sink.Add(value)
}

// Registry manages named metrics.
type Registry struct {
	mu      sync.RWMutex
	started time.Time
	metrics map[string]*Metric
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		started: time.Now(),
		metrics: make(map[string]*Metric),
	}
}

// MustMetric returns the named metric, creating it with the given type
// on first use. A metric keeps its original type if it already exists.
func (r *Registry) MustMetric(name string, metricType Type) *Metric {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[name]; ok {
		return m
	}
	m := &Metric{Name: name, Type: metricType, Sink: NewSink(metricType)}
	r.metrics[name] = m
	return m
}

// Get returns the named metric, or nil.
func (r *Registry) Get(name string) *Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// All returns a copy of the registered metrics keyed by name.
func (r *Registry) All() map[string]*Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Metric, len(r.metrics))
	for k, v := range r.metrics {
		out[k] = v
	}
	return out
}

// Snapshot formats every non-empty metric's statistics, keyed by metric
// name, using the registry's lifetime as the rate window.
func (r *Registry) Snapshot() map[string]map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	elapsed := time.Since(r.started)
	out := make(map[string]map[string]float64, len(r.metrics))
	for name, m := range r.metrics {
		if m.Sink.IsEmpty() {
			continue
		}
		out[name] = m.Sink.Format(elapsed)
	}
	return out
}
