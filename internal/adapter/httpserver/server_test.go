package httpserver

import (
	"context"
	"testing"

	"github.com/kursun12/gardorop-relay/internal/platform/config"
	"github.com/kursun12/gardorop-relay/internal/relay"
)

type fakeHub struct {
	stats    relay.Stats
	statsErr error
}

func (f *fakeHub) Serve(_ context.Context, conn relay.Conn) error {
	return conn.Close()
}

func (f *fakeHub) Stats() (relay.Stats, error) {
	return f.stats, f.statsErr
}

type testServerOption func(*Server)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(s *Server) { s.healthChecks = checks }
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		ConnectionsPerSecond: 100,
		ConnectionBurst:      100,
		MaxConnections:       100,
		MaxConnectionsPerIP:  100,
	}
}

func newTestServer(t *testing.T, hub hubService, opts ...testServerOption) *Server {
	t.Helper()
	srv := NewServer(testConfig(), hub, nil, nil, nil)
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
