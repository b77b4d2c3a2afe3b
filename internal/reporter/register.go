package reporter

import (
	"github.com/trainloop/trainloop/internal/reporter/console"
	"github.com/trainloop/trainloop/internal/reporter/file"
	"github.com/trainloop/trainloop/internal/reporter/webhook"
)

// RegisterBuiltinReporters registers all built-in reporters with the registry.
func RegisterBuiltinReporters(registry *Registry) error {
	// Console reporter
	if err := registry.Register(ReporterTypeConsole, func(config map[string]any) (Reporter, error) {
		factory := console.NewFactory()
		r, err := factory(config)
		if err != nil {
			return nil, err
		}
		return r.(*console.Reporter), nil
	}); err != nil {
		return err
	}

	// JSON reporter
	if err := registry.Register(ReporterTypeJSON, func(config map[string]any) (Reporter, error) {
		factory := file.NewJSONFactory()
		r, err := factory(config)
		if err != nil {
			return nil, err
		}
		return r.(*file.JSONReporter), nil
	}); err != nil {
		return err
	}

	// Webhook reporter
	if err := registry.Register(ReporterTypeWebhook, func(config map[string]any) (Reporter, error) {
		factory := webhook.NewFactory()
		r, err := factory(config)
		if err != nil {
			return nil, err
		}
		return r.(*webhook.Reporter), nil
	}); err != nil {
		return err
	}

	return nil
}

// NewDefaultRegistry creates a new registry with all built-in reporters registered.
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltinReporters(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
