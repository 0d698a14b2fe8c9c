package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/kursun12/gardorop-relay/internal/relay"
	"github.com/labstack/echo/v4"
)

// handleWebSocket upgrades the request and hands the connection to the hub.
// It blocks until the peer goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.caps.acquire(ip); !ok {
		slog.Warn("Connection refused", "remote_ip", ip, "reason", reason)
		if reason == capReasonGlobal {
			return c.String(http.StatusServiceUnavailable, "server at capacity")
		}
		return c.String(http.StatusTooManyRequests, "too many connections from this address")
	}
	defer s.caps.release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an error response.
		slog.Debug("WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}

	if err := s.hub.Serve(c.Request().Context(), conn); err != nil {
		if relay.IsStopped(err) {
			slog.Debug("Connection refused during shutdown", "remote_ip", ip)
		} else {
			slog.Warn("Failed to serve peer", "remote_ip", ip, "error", err)
		}
	}
	return nil
}
