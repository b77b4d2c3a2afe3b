package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainloop/trainloop/internal/metrics"
	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/monitor"
)

// stubEngine is a minimal engine that returns the step index for every
// requested op.
type stubEngine struct {
	finalized bool
	steps     int64
}

func (e *stubEngine) Finalize() error { e.finalized = true; return nil }
func (e *stubEngine) Finalized() bool { return e.finalized }
func (e *stubEngine) Close() error    { return nil }

func (e *stubEngine) Step(_ context.Context, ops []string, _ map[string]any, _ *hook.RunOptions) (*monitor.StepOutput, error) {
	values := make(map[string]any, len(ops))
	for _, op := range ops {
		values[op] = e.steps
	}
	e.steps++
	return &monitor.StepOutput{Values: values}, nil
}

func newTestSession(t *testing.T) *monitor.Session {
	t.Helper()
	sess, err := monitor.NewSession(&stubEngine{})
	require.NoError(t, err)
	return sess
}

func doRequest(t *testing.T, srv *Server, method, path string, header map[string]string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServerHealth(t *testing.T) {
	srv := NewServer(newTestSession(t), metrics.NewRegistry(), nil)

	code, body := doRequest(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestServerReady(t *testing.T) {
	t.Run("ready with session", func(t *testing.T) {
		srv := NewServer(newTestSession(t), nil, nil)

		code, body := doRequest(t, srv, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, code)

		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.True(t, resp.Ready)
		assert.Equal(t, "ready", resp.Status)
	})

	t.Run("not ready without session", func(t *testing.T) {
		srv := NewServer(nil, nil, nil)

		code, body := doRequest(t, srv, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, code)

		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.False(t, resp.Ready)
		assert.Equal(t, "not_ready", resp.Status)
	})
}

func TestServerStatus(t *testing.T) {
	t.Run("reflects session", func(t *testing.T) {
		sess := newTestSession(t)
		_, err := sess.Run(context.Background(), hook.NewRequest(hook.Op("step")))
		require.NoError(t, err)

		srv := NewServer(sess, nil, nil)

		code, body := doRequest(t, srv, http.MethodGet, "/api/v1/status", nil)
		assert.Equal(t, http.StatusOK, code)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, sess.RunID(), resp.RunID)
		assert.Equal(t, int64(1), resp.Step)
		assert.False(t, resp.Stopping)
		assert.False(t, resp.Closed)
	})

	t.Run("no session", func(t *testing.T) {
		srv := NewServer(nil, nil, nil)

		code, body := doRequest(t, srv, http.MethodGet, "/api/v1/status", nil)
		assert.Equal(t, http.StatusServiceUnavailable, code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "no_session", resp.Error)
	})
}

func TestServerStop(t *testing.T) {
	sess := newTestSession(t)
	srv := NewServer(sess, nil, nil)

	code, body := doRequest(t, srv, http.MethodPost, "/api/v1/stop", nil)
	assert.Equal(t, http.StatusAccepted, code)

	var resp StopResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, sess.RunID(), resp.RunID)
	assert.True(t, resp.Stopping)
	assert.True(t, sess.ShouldStop())
}

func TestServerMetrics(t *testing.T) {
	sess := newTestSession(t)
	registry := metrics.NewRegistry()
	registry.MustMetric("loss", metrics.Trend).Add(0.5)
	registry.MustMetric("loss", metrics.Trend).Add(0.3)

	srv := NewServer(sess, registry, nil)

	code, body := doRequest(t, srv, http.MethodGet, "/api/v1/metrics", nil)
	assert.Equal(t, http.StatusOK, code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, sess.RunID(), resp.RunID)
	require.Contains(t, resp.Metrics, "loss")
	assert.Equal(t, float64(2), resp.Metrics["loss"]["count"])
}

func TestServerAPIKeyAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	srv := NewServer(newTestSession(t), nil, cfg)

	t.Run("missing key rejected", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/api/v1/status", nil)
		assert.Equal(t, http.StatusUnauthorized, code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "unauthorized", resp.Error)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		code, _ := doRequest(t, srv, http.MethodGet, "/api/v1/status",
			map[string]string{"X-API-Key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("header key accepted", func(t *testing.T) {
		code, _ := doRequest(t, srv, http.MethodGet, "/api/v1/status",
			map[string]string{"X-API-Key": "secret"})
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("query key accepted", func(t *testing.T) {
		code, _ := doRequest(t, srv, http.MethodGet, "/api/v1/status?api_key=secret", nil)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("health exempt", func(t *testing.T) {
		code, _ := doRequest(t, srv, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestServerErrorEnvelope(t *testing.T) {
	srv := NewServer(newTestSession(t), nil, nil)

	code, body := doRequest(t, srv, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "error_404", resp.Error)
}

func TestEventHub(t *testing.T) {
	t.Run("publish reaches subscribers", func(t *testing.T) {
		hub := NewEventHub()
		defer hub.Close()

		ch1, cancel1 := hub.Subscribe()
		ch2, cancel2 := hub.Subscribe()
		defer cancel1()
		defer cancel2()
		assert.Equal(t, 2, hub.SubscriberCount())

		hub.Publish(StepEvent{Type: EventTypeStep, Step: 7})

		for _, ch := range []<-chan StepEvent{ch1, ch2} {
			select {
			case event := <-ch:
				assert.Equal(t, int64(7), event.Step)
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for event")
			}
		}
	})

	t.Run("cancel removes subscriber", func(t *testing.T) {
		hub := NewEventHub()
		defer hub.Close()

		ch, cancel := hub.Subscribe()
		cancel()
		assert.Equal(t, 0, hub.SubscriberCount())

		_, ok := <-ch
		assert.False(t, ok)

		cancel() // second cancel is a no-op
	})

	t.Run("close disconnects everyone", func(t *testing.T) {
		hub := NewEventHub()
		ch, _ := hub.Subscribe()

		hub.Close()
		_, ok := <-ch
		assert.False(t, ok)

		// Subscribing after close yields a closed channel.
		late, _ := hub.Subscribe()
		_, ok = <-late
		assert.False(t, ok)
	})

	t.Run("slow subscriber drops events", func(t *testing.T) {
		hub := NewEventHub()
		defer hub.Close()

		_, cancel := hub.Subscribe()
		defer cancel()

		for i := 0; i < 200; i++ {
			hub.Publish(StepEvent{Type: EventTypeStep, Step: int64(i)})
		}
		// No deadlock and the hub is still usable.
		assert.Equal(t, 1, hub.SubscriberCount())
	})
}

func TestPublishStep(t *testing.T) {
	sess := newTestSession(t)
	srv := NewServer(sess, nil, nil)

	ch, cancel := srv.Events().Subscribe()
	defer cancel()

	result, err := sess.Run(context.Background(), hook.NewRequest(hook.Op("step")))
	require.NoError(t, err)

	srv.PublishStep(0, result)

	select {
	case event := <-ch:
		assert.Equal(t, EventTypeStep, event.Type)
		assert.Equal(t, sess.RunID(), event.RunID)
		assert.Equal(t, int64(0), event.Step)
		assert.NotNil(t, event.Values)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for step event")
	}
}
