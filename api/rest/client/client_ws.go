package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trainloop/trainloop/api/rest"
)

// EventHandler receives one step event from the stream.
type EventHandler func(event *rest.StepEvent)

// EventStream is a live WebSocket subscription to the step event feed.
type EventStream struct {
	conn   *websocket.Conn
	events chan *rest.StepEvent
	done   chan struct{}
}

// StreamEvents opens a WebSocket connection to the step event feed.
// Events arrive on the returned stream until the context is cancelled,
// the stream is closed, or the server shuts down.
func (c *Client) StreamEvents(ctx context.Context) (*EventStream, error) {
	wsURL := toWebSocketURL(c.config.BaseURL) + "/api/v1/events"

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.RequestTimeout,
	}
	var header http.Header
	if c.config.APIKey != "" {
		header = http.Header{"X-API-Key": []string{c.config.APIKey}}
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial failed: %w", err)
	}

	stream := &EventStream{
		conn:   conn,
		events: make(chan *rest.StepEvent, 64),
		done:   make(chan struct{}),
	}

	go stream.readPump()
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

// Events returns the channel step events arrive on. The channel is
// closed when the stream ends.
func (s *EventStream) Events() <-chan *rest.StepEvent {
	return s.events
}

// Close terminates the stream.
func (s *EventStream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *EventStream) readPump() {
	defer func() {
		close(s.done)
		close(s.events)
		s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var event rest.StepEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}

		select {
		case s.events <- &event:
		default:
			// Consumer is behind, drop the event.
		}
	}
}

// WatchEvents streams events and invokes handler for each one until the
// context is cancelled or the stream ends.
func (c *Client) WatchEvents(ctx context.Context, handler EventHandler) error {
	stream, err := c.StreamEvents(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-stream.Events():
			if !ok {
				return nil
			}
			handler(event)
		}
	}
}

// toWebSocketURL converts an HTTP(s) URL or bare host:port to a ws:// URL.
func toWebSocketURL(raw string) string {
	if strings.HasPrefix(raw, "https://") {
		return "wss://" + strings.TrimPrefix(raw, "https://")
	}
	if strings.HasPrefix(raw, "http://") {
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return "ws://" + raw
}
