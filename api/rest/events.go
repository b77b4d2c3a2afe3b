package rest

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"

	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
)

// EventHub fans step events out to all connected WebSocket clients.
// Publishing never blocks: slow subscribers drop events.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan StepEvent]struct{}
	closed bool
}

// NewEventHub creates an empty event hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan StepEvent]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (h *EventHub) Subscribe() (<-chan StepEvent, func()) {
	ch := make(chan StepEvent, 64)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	once := sync.Once{}
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish broadcasts an event to every subscriber.
func (h *EventHub) Publish(event StepEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			// Subscriber is behind, drop the event.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close shuts the hub down and disconnects all subscribers.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// PublishStep builds a step event from a run result and broadcasts it.
// It has the signature monitor.WithStepCallback expects.
func (s *Server) PublishStep(step int64, result *hook.RunResult) {
	event := StepEvent{
		Type:      EventTypeStep,
		Step:      step,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if s.session != nil {
		event.RunID = s.session.RunID()
	}
	if result != nil {
		if meta := result.Metadata(); meta != nil {
			event.DurationMs = float64(meta.Duration.Microseconds()) / 1000
		}
		event.Values = result.Results().Interface()
	}
	s.events.Publish(event)
}

// PublishComplete signals the end of the run to all stream clients.
func (s *Server) PublishComplete() {
	event := StepEvent{
		Type:      EventTypeComplete,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if s.session != nil {
		event.RunID = s.session.RunID()
		event.Step = s.session.StepCount()
	}
	s.events.Publish(event)
}

// setupEventRoutes registers the WebSocket step event stream.
func (s *Server) setupEventRoutes() {
	if !s.config.EnableWebSocket {
		return
	}

	s.app.Use("/api/v1/events", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/api/v1/events", fiberws.New(func(c *fiberws.Conn) {
		s.handleEventStream(c)
	}))
}

// handleEventStream streams step events over one WebSocket connection.
func (s *Server) handleEventStream(c *fiberws.Conn) {
	defer c.Close()

	events, cancel := s.events.Subscribe()
	defer cancel()

	done := make(chan struct{})

	// Read pump detects client-side close.
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(&event); err != nil {
				logger.Debug("event stream write failed: %v", err)
				return
			}
		}
	}
}
