package httpserver

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// newOriginChecker builds the upgrader's CheckOrigin. With no allowed
// origins configured every origin is accepted. Requests without an Origin
// header (non-browser peers) are always accepted.
func newOriginChecker(allowed []string) func(r *http.Request) bool {
	normalized := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			normalized = append(normalized, strings.ToLower(o))
		}
	}

	return func(r *http.Request) bool {
		if len(normalized) == 0 {
			return true
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(normalized, strings.ToLower(origin)) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}
