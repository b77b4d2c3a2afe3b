package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// readyCheck handles GET /ready
func (s *Server) readyCheck(c *fiber.Ctx) error {
	ready := s.session != nil
	status := "ready"
	if !ready {
		status = "not_ready"
	}

	return c.JSON(ReadyResponse{
		Ready:     ready,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// getStatus handles GET /api/v1/status
func (s *Server) getStatus(c *fiber.Ctx) error {
	if s.session == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "no_session",
			Message: "No session is attached",
		})
	}

	status := s.session.Status()
	return c.JSON(StatusResponse{
		RunID:     status.RunID,
		Step:      status.Step,
		Stopping:  status.Stopping,
		Closed:    status.Closed,
		StartedAt: status.StartedAt,
		ElapsedMs: float64(status.Elapsed.Microseconds()) / 1000,
	})
}

// postStop handles POST /api/v1/stop
func (s *Server) postStop(c *fiber.Ctx) error {
	if s.session == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "no_session",
			Message: "No session is attached",
		})
	}

	s.session.RequestStop()
	return c.Status(fiber.StatusAccepted).JSON(StopResponse{
		RunID:    s.session.RunID(),
		Stopping: true,
	})
}

// getMetrics handles GET /api/v1/metrics
func (s *Server) getMetrics(c *fiber.Ctx) error {
	if s.session == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "no_session",
			Message: "No session is attached",
		})
	}

	resp := MetricsResponse{
		RunID:   s.session.RunID(),
		Step:    s.session.StepCount(),
		Metrics: map[string]map[string]float64{},
	}
	if s.registry != nil {
		resp.Metrics = s.registry.Snapshot()
	}
	return c.JSON(resp)
}
