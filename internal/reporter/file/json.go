// Package file provides file-based reporters for monitored runs.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ohler55/ojg/oj"

	"github.com/trainloop/trainloop/internal/metrics"
)

// JSONConfig holds configuration for the JSON reporter.
type JSONConfig struct {
	// FilePath is the output file path.
	FilePath string `yaml:"file_path"`
	// Pretty enables indented JSON output.
	Pretty bool `yaml:"pretty"`
	// BufferSize is the number of summaries to buffer before writing.
	BufferSize int `yaml:"buffer_size"`
}

// DefaultJSONConfig returns the default JSON reporter configuration.
func DefaultJSONConfig() *JSONConfig {
	return &JSONConfig{
		FilePath:   "run-summary.json",
		Pretty:     true,
		BufferSize: 16,
	}
}

// JSONReporter writes run summaries to a JSON file. The file holds a
// JSON array with one element per reported summary.
type JSONReporter struct {
	config *JSONConfig
	file   *os.File
	buffer []*metrics.RunSummary
	mu     sync.Mutex

	initialized   bool
	recordWritten bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(config *JSONConfig) *JSONReporter {
	if config == nil {
		config = DefaultJSONConfig()
	}
	return &JSONReporter{
		config: config,
		buffer: make([]*metrics.RunSummary, 0, config.BufferSize),
	}
}

// NewJSONFactory returns a factory function for creating JSON reporters.
func NewJSONFactory() func(config map[string]any) (interface{ Name() string }, error) {
	return func(config map[string]any) (interface{ Name() string }, error) {
		cfg := DefaultJSONConfig()
		if config != nil {
			if v, ok := config["file_path"].(string); ok {
				cfg.FilePath = v
			}
			if v, ok := config["pretty"].(bool); ok {
				cfg.Pretty = v
			}
			if v, ok := config["buffer_size"].(int); ok {
				cfg.BufferSize = v
			}
		}
		return NewJSONReporter(cfg), nil
	}
}

// Name returns the reporter name.
func (r *JSONReporter) Name() string {
	return "json"
}

// Init opens the output file and writes the array header.
func (r *JSONReporter) Init(ctx context.Context, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("reporter already initialized")
	}

	dir := filepath.Dir(r.config.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	file, err := os.Create(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	r.file = file

	if _, err := r.file.WriteString("[\n"); err != nil {
		r.file.Close()
		return fmt.Errorf("write header: %w", err)
	}

	r.initialized = true
	return nil
}

// Report buffers a run summary for writing.
func (r *JSONReporter) Report(ctx context.Context, summary *metrics.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("reporter not initialized")
	}

	r.buffer = append(r.buffer, summary)

	if len(r.buffer) >= r.config.BufferSize {
		return r.flushBuffer()
	}

	return nil
}

// Flush flushes any buffered data.
func (r *JSONReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	return r.flushBuffer()
}

// Close flushes the buffer, terminates the array, and closes the file.
func (r *JSONReporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	if err := r.flushBuffer(); err != nil {
		return err
	}

	if _, err := r.file.WriteString("\n]"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	r.initialized = false
	r.file = nil
	return nil
}

// flushBuffer writes buffered summaries to the file.
func (r *JSONReporter) flushBuffer() error {
	if len(r.buffer) == 0 {
		return nil
	}

	for _, summary := range r.buffer {
		if r.recordWritten {
			if _, err := r.file.WriteString(",\n"); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}

		var data []byte
		var err error
		if r.config.Pretty {
			data, err = oj.Marshal(summary, 2)
		} else {
			data, err = oj.Marshal(summary)
		}
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}

		if _, err := r.file.Write(data); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}

		r.recordWritten = true
	}

	r.buffer = r.buffer[:0]
	return nil
}

// GetFilePath returns the output file path.
func (r *JSONReporter) GetFilePath() string {
	return r.config.FilePath
}
