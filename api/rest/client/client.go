// Package client implements an HTTP client for the run control surface.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trainloop/trainloop/api/rest"
)

// Config holds the configuration for the control surface client.
type Config struct {
	// BaseURL is the base URL of the server (e.g., "http://localhost:8080").
	BaseURL string

	// APIKey is sent as the X-API-Key header when non-empty.
	APIKey string

	// RequestTimeout is the timeout for HTTP requests.
	RequestTimeout time.Duration
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:8080",
		RequestTimeout: 30 * time.Second,
	}
}

// Client talks to a running control surface over HTTP.
type Client struct {
	config *Config
	agent  *fiber.Client
}

// NewClient creates a new control surface client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Client{
		config: config,
		agent:  fiber.AcquireClient(),
	}
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) (*rest.HealthResponse, error) {
	var resp rest.HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ready reports whether the server has an attached session.
func (c *Client) Ready(ctx context.Context) (*rest.ReadyResponse, error) {
	var resp rest.ReadyResponse
	if err := c.get(ctx, "/ready", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current run status.
func (c *Client) Status(ctx context.Context) (*rest.StatusResponse, error) {
	var resp rest.StatusResponse
	if err := c.get(ctx, "/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests a cooperative stop of the run loop.
func (c *Client) Stop(ctx context.Context) (*rest.StopResponse, error) {
	var resp rest.StopResponse
	if err := c.post(ctx, "/api/v1/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics fetches the current metric snapshot.
func (c *Client) Metrics(ctx context.Context) (*rest.MetricsResponse, error) {
	var resp rest.MetricsResponse
	if err := c.get(ctx, "/api/v1/metrics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *Config {
	return c.config
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req := c.agent.Get(c.config.BaseURL + path)
	return c.do(ctx, req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req := c.agent.Post(c.config.BaseURL + path)
	if body != nil {
		req.Body(body)
		req.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req, path, out)
}

func (c *Client) do(ctx context.Context, req *fiber.Agent, path string, out any) error {
	if deadline, ok := ctx.Deadline(); ok {
		req.Timeout(time.Until(deadline))
	} else {
		req.Timeout(c.config.RequestTimeout)
	}
	if c.config.APIKey != "" {
		req.Set("X-API-Key", c.config.APIKey)
	}

	statusCode, respBody, errs := req.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request %s failed: %v", path, errs[0])
	}

	if statusCode < fiber.StatusOK || statusCode >= fiber.StatusMultipleChoices {
		var errResp rest.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("request %s failed: %s", path, errResp.Message)
		}
		return fmt.Errorf("request %s failed with status: %d", path, statusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// IsRetryableError checks if an HTTP status code indicates a retryable error.
func IsRetryableError(statusCode int) bool {
	switch statusCode {
	case fiber.StatusServiceUnavailable,
		fiber.StatusGatewayTimeout,
		fiber.StatusBadGateway,
		fiber.StatusTooManyRequests,
		fiber.StatusRequestTimeout:
		return true
	default:
		return false
	}
}
