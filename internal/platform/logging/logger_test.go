package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestPeerHandler_AddsPeerID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	ctx := WithPeer(context.Background(), "peer-1")
	logger.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "peer-1", record["peer_id"])
	assert.Equal(t, "hello", record["msg"])
}

func TestPeerHandler_NoPeerInContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.InfoContext(context.Background(), "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "peer_id")
}

func TestPeerHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestPeerHandler_WithAttrsKeepsPeer(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "text").With("component", "hub")

	logger.InfoContext(WithPeer(context.Background(), "p-9"), "event")

	out := buf.String()
	assert.Contains(t, out, "component=hub")
	assert.Contains(t, out, "peer_id=p-9")
}

func TestPeerID_EmptyString(t *testing.T) {
	_, ok := PeerID(WithPeer(context.Background(), ""))
	assert.False(t, ok)
}
