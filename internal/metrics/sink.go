package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Sink aggregates samples for one metric.
type Sink interface {
	// Add records a sample value.
	Add(value float64)
	// Format returns the aggregated statistics; elapsed is the window
	// used to derive rates.
	Format(elapsed time.Duration) map[string]float64
	// IsEmpty reports whether any sample was recorded.
	IsEmpty() bool
}

// NewSink creates the sink matching a metric type.
func NewSink(metricType Type) Sink {
	switch metricType {
	case Gauge:
		return &GaugeSink{}
	case Rate:
		return &RateSink{}
	case Trend:
		return &TrendSink{}
	default:
		return &CounterSink{}
	}
}

// CounterSink accumulates a total.
type CounterSink struct {
	mu    sync.Mutex
	value float64
	count int64
}

func (c *CounterSink) Add(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += value
	c.count++
}

func (c *CounterSink) Format(elapsed time.Duration) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]float64{"count": c.value}
	if secs := elapsed.Seconds(); secs > 0 {
		out["rate"] = c.value / secs
	}
	return out
}

func (c *CounterSink) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count == 0
}

// GaugeSink tracks the latest value with min/max/avg.
type GaugeSink struct {
	mu     sync.Mutex
	value  float64
	min    float64
	max    float64
	sum    float64
	count  int64
	minSet bool
}

func (g *GaugeSink) Add(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
	g.sum += value
	g.count++
	if !g.minSet || value < g.min {
		g.min = value
		g.minSet = true
	}
	if value > g.max || g.count == 1 {
		g.max = value
	}
}

func (g *GaugeSink) Format(time.Duration) map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[string]float64{"value": g.value, "min": g.min, "max": g.max}
	if g.count > 0 {
		out["avg"] = g.sum / float64(g.count)
	}
	return out
}

func (g *GaugeSink) IsEmpty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count == 0
}

// RateSink tracks how often samples are non-zero.
type RateSink struct {
	mu    sync.Mutex
	trues int64
	total int64
}

func (r *RateSink) Add(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if value != 0 {
		r.trues++
	}
}

func (r *RateSink) Format(time.Duration) map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]float64{
		"passes": float64(r.trues),
		"fails":  float64(r.total - r.trues),
		"rate":   0,
	}
	if r.total > 0 {
		out["rate"] = float64(r.trues) / float64(r.total)
	}
	return out
}

func (r *RateSink) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total == 0
}

// TrendSink tracks distribution statistics with interpolated
// percentiles.
type TrendSink struct {
	mu     sync.Mutex
	values []float64
	sum    float64
	min    float64
	max    float64
	minSet bool
}

func (t *TrendSink) Add(value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = append(t.values, value)
	t.sum += value
	if !t.minSet || value < t.min {
		t.min = value
		t.minSet = true
	}
	if value > t.max || len(t.values) == 1 {
		t.max = value
	}
}

func (t *TrendSink) Format(time.Duration) map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := map[string]float64{
		"count": float64(len(t.values)),
		"min":   t.min,
		"max":   t.max,
	}
	if len(t.values) > 0 {
		out["avg"] = t.sum / float64(len(t.values))
		out["med"] = t.percentile(50)
		out["p(90)"] = t.percentile(90)
		out["p(95)"] = t.percentile(95)
		out["p(99)"] = t.percentile(99)
	}
	return out
}

// percentile must be called with the lock held.
func (t *TrendSink) percentile(p float64) float64 {
	if len(t.values) == 0 {
		return 0
	}
	sorted := make([]float64, len(t.values))
	copy(sorted, t.values)
	sort.Float64s(sorted)

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Percentile returns the interpolated percentile of recorded samples.
func (t *TrendSink) Percentile(p float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentile(p)
}

func (t *TrendSink) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values) == 0
}
