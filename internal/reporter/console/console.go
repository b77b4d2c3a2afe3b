// Package console provides the console reporter for monitored runs.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/trainloop/trainloop/internal/metrics"
)

// Config holds configuration for the console reporter.
type Config struct {
	// ShowMetrics enables the per-metric breakdown.
	ShowMetrics bool `yaml:"show_metrics"`
	// ShowTiming enables the step latency section.
	ShowTiming bool `yaml:"show_timing"`
	// ColorOutput enables colored output.
	ColorOutput bool `yaml:"color_output"`
	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns the default console reporter configuration.
func DefaultConfig() *Config {
	return &Config{
		ShowMetrics: true,
		ShowTiming:  true,
		ColorOutput: true,
		Writer:      os.Stdout,
	}
}

// Reporter implements the console reporter.
type Reporter struct {
	config *Config
	writer io.Writer

	mu          sync.Mutex
	initialized bool
}

// New creates a new console reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	return &Reporter{
		config: config,
		writer: config.Writer,
	}
}

// NewFactory returns a factory function for creating console reporters.
func NewFactory() func(config map[string]any) (interface{ Name() string }, error) {
	return func(config map[string]any) (interface{ Name() string }, error) {
		cfg := DefaultConfig()
		if config != nil {
			if v, ok := config["show_metrics"].(bool); ok {
				cfg.ShowMetrics = v
			}
			if v, ok := config["show_timing"].(bool); ok {
				cfg.ShowTiming = v
			}
			if v, ok := config["color_output"].(bool); ok {
				cfg.ColorOutput = v
			}
		}
		return New(cfg), nil
	}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "console"
}

// Init initializes the reporter.
func (r *Reporter) Init(ctx context.Context, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("reporter already initialized")
	}

	r.initialized = true
	return nil
}

// Report prints a run summary to the console.
func (r *Reporter) Report(ctx context.Context, summary *metrics.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("reporter not initialized")
	}

	r.printSummary(summary)
	return nil
}

// Flush flushes any buffered output.
func (r *Reporter) Flush(ctx context.Context) error {
	// Console output is unbuffered, nothing to flush
	return nil
}

// Close closes the reporter.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	return nil
}

func (r *Reporter) printSummary(summary *metrics.RunSummary) {
	r.writeLine("")
	r.writeLine(r.colorize("=== Run Summary ===", colorCyan))
	r.writeLine(fmt.Sprintf("Run ID:   %s", summary.RunID))
	r.writeLine(fmt.Sprintf("Steps:    %d", summary.Steps))
	r.writeLine(fmt.Sprintf("Elapsed:  %s", r.formatDuration(summary.Elapsed)))
	if summary.Elapsed > 0 && summary.Steps > 0 {
		rate := float64(summary.Steps) / summary.Elapsed.Seconds()
		r.writeLine(fmt.Sprintf("Rate:     %.2f steps/s", rate))
	}
	if summary.Stopped {
		r.writeLine(r.colorize("Stop was requested before the loop ended", colorYellow))
	}

	if r.config.ShowTiming && len(summary.Timing) > 0 {
		r.writeLine("")
		r.writeLine(r.colorize("--- Step Latency ---", colorYellow))
		r.printValues("  ", summary.Timing)
	}

	if r.config.ShowMetrics && len(summary.Metrics) > 0 {
		r.writeLine("")
		r.writeLine(r.colorize("--- Metrics ---", colorYellow))

		names := make([]string, 0, len(summary.Metrics))
		for name := range summary.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			r.writeLine(fmt.Sprintf("  %s:", r.colorize(name, colorWhite)))
			r.printValues("    ", summary.Metrics[name])
		}
	}

	r.writeLine(r.colorize("===================", colorCyan))
	r.writeLine("")
}

func (r *Reporter) printValues(indent string, values map[string]float64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.writeLine(fmt.Sprintf("%s%s=%g", indent, k, values[k]))
	}
}

func (r *Reporter) writeLine(s string) {
	fmt.Fprintln(r.writer, s)
}

func (r *Reporter) formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func (r *Reporter) colorize(s string, color string) string {
	if !r.config.ColorOutput {
		return s
	}
	return color + s + colorReset
}
