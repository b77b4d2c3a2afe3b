package reporter

import (
	"context"
	"fmt"
	"sync"

	"github.com/trainloop/trainloop/internal/metrics"
)

// Reporter defines the interface for summary output.
type Reporter interface {
	// Name returns the reporter name.
	Name() string

	// Init initializes the reporter with its configuration.
	Init(ctx context.Context, config map[string]any) error

	// Report delivers a run summary.
	Report(ctx context.Context, summary *metrics.RunSummary) error

	// Flush writes out any buffered data.
	Flush(ctx context.Context) error

	// Close shuts the reporter down and releases resources.
	Close(ctx context.Context) error
}

// ReporterType names a reporter implementation.
type ReporterType string

const (
	// ReporterTypeConsole writes to standard output.
	ReporterTypeConsole ReporterType = "console"
	// ReporterTypeJSON writes to a JSON file.
	ReporterTypeJSON ReporterType = "json"
	// ReporterTypeWebhook posts to a webhook URL.
	ReporterTypeWebhook ReporterType = "webhook"
)

// ReporterConfig holds the configuration of one reporter.
type ReporterConfig struct {
	Type    ReporterType   `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config,omitempty"`
}

// ReporterFactory creates a reporter of a specific type.
type ReporterFactory func(config map[string]any) (Reporter, error)

// Registry manages reporter registration and creation.
type Registry struct {
	factories map[ReporterType]ReporterFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty reporter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ReporterType]ReporterFactory),
	}
}

// Register registers a factory for the given type.
func (r *Registry) Register(reporterType ReporterType, factory ReporterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reporterType]; exists {
		return fmt.Errorf("reporter type already registered: %s", reporterType)
	}

	r.factories[reporterType] = factory
	return nil
}

// Unregister removes a reporter factory.
func (r *Registry) Unregister(reporterType ReporterType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, reporterType)
}

// Create builds a reporter of the given type.
func (r *Registry) Create(reporterType ReporterType, config map[string]any) (Reporter, error) {
	r.mu.RLock()
	factory, exists := r.factories[reporterType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown reporter type: %s", reporterType)
	}

	return factory(config)
}

// ListTypes returns all registered reporter types.
func (r *Registry) ListTypes() []ReporterType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ReporterType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// HasType reports whether a reporter type is registered.
func (r *Registry) HasType(reporterType ReporterType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[reporterType]
	return exists
}
