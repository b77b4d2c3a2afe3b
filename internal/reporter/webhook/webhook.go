// Package webhook provides a webhook reporter for monitored runs.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/trainloop/trainloop/internal/metrics"
)

// Config holds configuration for the webhook reporter.
type Config struct {
	// URL is the webhook endpoint URL.
	URL string `yaml:"url"`
	// Method is the HTTP method (default: POST).
	Method string `yaml:"method"`
	// Headers are additional HTTP headers.
	Headers map[string]string `yaml:"headers,omitempty"`
	// BatchSize is the number of summaries to batch before sending.
	BatchSize int `yaml:"batch_size"`
	// RetryAttempts is the number of retry attempts on failure.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryDelay is the delay between retry attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default webhook reporter configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:           "",
		Method:        http.MethodPost,
		Headers:       make(map[string]string),
		BatchSize:     10,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Timeout:       10 * time.Second,
	}
}

// BatchPayload is the request body sent to the webhook.
type BatchPayload struct {
	Records []*metrics.RunSummary `json:"records"`
	Count   int                   `json:"count"`
}

// Reporter implements the webhook reporter.
type Reporter struct {
	config *Config
	client *fasthttp.Client

	// Buffer for batch sends
	buffer []*metrics.RunSummary
	mu     sync.Mutex

	initialized bool
}

// New creates a new webhook reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	return &Reporter{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
		buffer: make([]*metrics.RunSummary, 0, config.BatchSize),
	}
}

// NewFactory returns a factory function for creating webhook reporters.
func NewFactory() func(config map[string]any) (interface{ Name() string }, error) {
	return func(config map[string]any) (interface{ Name() string }, error) {
		cfg := DefaultConfig()
		if config != nil {
			if v, ok := config["url"].(string); ok {
				cfg.URL = v
			}
			if v, ok := config["method"].(string); ok {
				cfg.Method = v
			}
			if v, ok := config["headers"].(map[string]any); ok {
				for k, val := range v {
					if s, ok := val.(string); ok {
						cfg.Headers[k] = s
					}
				}
			}
			if v, ok := config["batch_size"].(int); ok {
				cfg.BatchSize = v
			}
			if v, ok := config["retry_attempts"].(int); ok {
				cfg.RetryAttempts = v
			}
			if v, ok := config["retry_delay"].(string); ok {
				if d, err := time.ParseDuration(v); err == nil {
					cfg.RetryDelay = d
				}
			}
			if v, ok := config["timeout"].(string); ok {
				if d, err := time.ParseDuration(v); err == nil {
					cfg.Timeout = d
				}
			}
		}
		return New(cfg), nil
	}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "webhook"
}

// Init validates the configuration.
func (r *Reporter) Init(ctx context.Context, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("reporter already initialized")
	}

	if r.config.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}

	r.initialized = true
	return nil
}

// Report buffers a run summary for delivery.
func (r *Reporter) Report(ctx context.Context, summary *metrics.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return fmt.Errorf("reporter not initialized")
	}

	r.buffer = append(r.buffer, summary)

	if len(r.buffer) >= r.config.BatchSize {
		return r.flushBuffer(ctx)
	}

	return nil
}

// Flush flushes any buffered data.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	return r.flushBuffer(ctx)
}

// Close flushes remaining summaries and shuts the reporter down.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}

	if err := r.flushBuffer(ctx); err != nil {
		return err
	}

	r.initialized = false
	return nil
}

// flushBuffer sends buffered summaries to the webhook.
func (r *Reporter) flushBuffer(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	batch := &BatchPayload{
		Records: r.buffer,
		Count:   len(r.buffer),
	}

	if err := r.sendWithRetry(ctx, batch); err != nil {
		return err
	}

	r.buffer = r.buffer[:0]
	return nil
}

// sendWithRetry sends the payload with linear backoff.
func (r *Reporter) sendWithRetry(ctx context.Context, payload *BatchPayload) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		err := r.send(payload)
		if err == nil {
			return nil
		}

		lastErr = err
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.RetryAttempts+1, lastErr)
}

// send posts the payload to the webhook.
func (r *Reporter) send(payload *BatchPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.config.URL)
	req.Header.SetMethod(r.config.Method)
	req.Header.SetContentType("application/json")
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}
	req.SetBody(data)

	if err := r.client.DoTimeout(req, resp, r.config.Timeout); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", status, resp.Body())
	}

	return nil
}

// GetConfig returns the reporter configuration.
func (r *Reporter) GetConfig() *Config {
	return r.config
}

// GetBufferSize returns the current buffer size.
func (r *Reporter) GetBufferSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}
