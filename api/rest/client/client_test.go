package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainloop/trainloop/api/rest"
)

func newTestServer(t *testing.T, handler http.Handler) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(&Config{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
	})
	return srv, c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClientHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, rest.HealthResponse{Status: "healthy"})
	})
	_, c := newTestServer(t, mux)

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
}

func TestClientStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(t, w, http.StatusOK, rest.StatusResponse{
			RunID:    "run-1",
			Step:     42,
			Stopping: true,
		})
	})
	_, c := newTestServer(t, mux)

	resp, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, int64(42), resp.Step)
	assert.True(t, resp.Stopping)
}

func TestClientStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stop", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(t, w, http.StatusAccepted, rest.StopResponse{RunID: "run-1", Stopping: true})
	})
	_, c := newTestServer(t, mux)

	resp, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Stopping)
}

func TestClientMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, rest.MetricsResponse{
			RunID: "run-1",
			Step:  10,
			Metrics: map[string]map[string]float64{
				"loss": {"count": 10, "avg": 0.5},
			},
		})
	})
	_, c := newTestServer(t, mux)

	resp, err := c.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.Step)
	assert.Equal(t, 0.5, resp.Metrics["loss"]["avg"])
}

func TestClientErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusServiceUnavailable, rest.ErrorResponse{
			Error:   "no_session",
			Message: "No session is attached",
		})
	})
	_, c := newTestServer(t, mux)

	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No session is attached")
}

func TestClientAPIKeyHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			writeJSON(t, w, http.StatusUnauthorized, rest.ErrorResponse{
				Error: "unauthorized", Message: "API key is required",
			})
			return
		}
		writeJSON(t, w, http.StatusOK, rest.StatusResponse{RunID: "run-1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(&Config{BaseURL: srv.URL, APIKey: "secret"})
	resp, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestClientStreamEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 0; i < 3; i++ {
			event := rest.StepEvent{Type: rest.EventTypeStep, RunID: "run-1", Step: int64(i)}
			require.NoError(t, conn.WriteJSON(&event))
		}
		conn.WriteJSON(&rest.StepEvent{Type: rest.EventTypeComplete, RunID: "run-1", Step: 3})

		// Wait for the client to hang up.
		conn.ReadMessage()
	})
	_, c := newTestServer(t, mux)

	stream, err := c.StreamEvents(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var got []*rest.StepEvent
	timeout := time.After(5 * time.Second)
	for len(got) < 4 {
		select {
		case event, ok := <-stream.Events():
			require.True(t, ok, "stream ended early")
			got = append(got, event)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	assert.Equal(t, rest.EventTypeStep, got[0].Type)
	assert.Equal(t, int64(0), got[0].Step)
	assert.Equal(t, rest.EventTypeComplete, got[3].Type)
}

func TestClientWatchEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(&rest.StepEvent{Type: rest.EventTypeStep, Step: 1})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	_, c := newTestServer(t, mux)

	var seen []int64
	err := c.WatchEvents(context.Background(), func(event *rest.StepEvent) {
		seen = append(seen, event.Step)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, seen)
}

func TestToWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080", toWebSocketURL("http://localhost:8080"))
	assert.Equal(t, "wss://example.com", toWebSocketURL("https://example.com"))
	assert.Equal(t, "ws://localhost:8080", toWebSocketURL("localhost:8080"))
}
