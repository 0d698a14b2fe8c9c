package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kursun12/gardorop-relay/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	stats, err := s.hub.Stats()
	if err != nil {
		return s.writeUnhealthy(c, "hub", err)
	}

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return s.writeUnhealthy(c, hc.Name, err)
		}
	}

	response := map[string]any{
		"status":       "ready",
		"peers":        stats.Peers,
		"responsive":   stats.Responsive,
		"has_snapshot": stats.Snapshot != nil,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) writeUnhealthy(c echo.Context, check string, cause error) error {
	response := map[string]any{
		"status":       "unhealthy",
		"failed_check": check,
		"error":        cause.Error(),
	}
	if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
