package logging

import (
	"context"
	"fmt"
	"log/slog"
)

type peerKey struct{}

// WithPeer returns a context carrying the identity of the peer being served.
func WithPeer(ctx context.Context, peerID string) context.Context {
	return context.WithValue(ctx, peerKey{}, peerID)
}

// PeerID extracts the peer identity from ctx.
func PeerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(peerKey{}).(string)
	return id, ok && id != ""
}

// PeerHandler wraps a slog.Handler and adds a "peer_id" attribute
// to records logged with a peer context.
type PeerHandler struct {
	inner slog.Handler
}

func NewPeerHandler(inner slog.Handler) *PeerHandler {
	return &PeerHandler{inner: inner}
}

func (h *PeerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *PeerHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := PeerID(ctx); ok {
		r.AddAttrs(slog.String("peer_id", id))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("peer handler: %w", err)
	}
	return nil
}

func (h *PeerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PeerHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *PeerHandler) WithGroup(name string) slog.Handler {
	return &PeerHandler{inner: h.inner.WithGroup(name)}
}
