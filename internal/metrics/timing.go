package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// TimingSink aggregates step durations in an HDR histogram. Durations
// are recorded at microsecond resolution between 1µs and one hour;
// values outside the range are clamped.
type TimingSink struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

const (
	timingMinUs = 1
	timingMaxUs = int64(time.Hour / time.Microsecond)
)

// NewTimingSink creates a duration histogram with three significant
// digits.
func NewTimingSink() *TimingSink {
	return &TimingSink{hist: hdrhistogram.New(timingMinUs, timingMaxUs, 3)}
}

// Record adds one duration sample.
func (t *TimingSink) Record(d time.Duration) {
	us := d.Microseconds()
	if us < timingMinUs {
		us = timingMinUs
	}
	if us > timingMaxUs {
		us = timingMaxUs
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.hist.RecordValue(us)
}

// Quantile returns the duration at quantile q (0..100).
func (t *TimingSink) Quantile(q float64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.hist.ValueAtQuantile(q)) * time.Microsecond
}

// Mean returns the mean recorded duration.
func (t *TimingSink) Mean() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.hist.Mean()) * time.Microsecond
}

// Max returns the largest recorded duration.
func (t *TimingSink) Max() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.hist.Max()) * time.Microsecond
}

// Count returns the number of recorded samples.
func (t *TimingSink) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hist.TotalCount()
}

// Format returns millisecond statistics in sink form.
func (t *TimingSink) Format() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	toMs := func(us int64) float64 { return float64(us) / 1000 }
	return map[string]float64{
		"count":  float64(t.hist.TotalCount()),
		"min_ms": toMs(t.hist.Min()),
		"max_ms": toMs(t.hist.Max()),
		"avg_ms": t.hist.Mean() / 1000,
		"p50_ms": toMs(t.hist.ValueAtQuantile(50)),
		"p90_ms": toMs(t.hist.ValueAtQuantile(90)),
		"p95_ms": toMs(t.hist.ValueAtQuantile(95)),
		"p99_ms": toMs(t.hist.ValueAtQuantile(99)),
	}
}
