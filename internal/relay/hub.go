package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kursun12/gardorop-relay/internal/adapter/metrics"
	"github.com/kursun12/gardorop-relay/internal/domain"
	"github.com/kursun12/gardorop-relay/internal/platform/logging"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSendBuffer        = 16
	DefaultMaxMessageBytes   = 4096

	defaultCommandTimeout = 5 * time.Second
	stopTimeout           = 10 * time.Second
	publishTimeout        = 2 * time.Second
	shutdownReason        = "server shutting down"
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type connectCmd struct {
	baseHubCmd
	connection Conn
	reply      chan string
}

type messageCmd struct {
	baseHubCmd
	peerID string
	data   []byte
}

type pongCmd struct {
	baseHubCmd
	peerID string
}

type disconnectCmd struct {
	baseHubCmd
	peerID string
}

type remoteCmd struct {
	baseHubCmd
	snapshot domain.Snapshot
}

type statsCmd struct {
	baseHubCmd
	reply chan Stats
}

type stopCmd struct {
	baseHubCmd
}

// abandonCmd drops the registration of a connection whose caller gave up
// waiting for the connect reply.
type abandonCmd struct {
	baseHubCmd
	connection Conn
}

// Options configures a Hub. Zero values fall back to the defaults.
type Options struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
	MaxMessageBytes   int64

	// Publisher, when set, receives every locally accepted snapshot.
	Publisher domain.SnapshotPublisher
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Peers      int
	Responsive int
	Snapshot   *domain.Snapshot
}

// Hub owns every connected peer and the latest snapshot.
type Hub struct {
	cmdCh           chan hubCmd
	clock           clockwork.Clock
	heartbeat       clockwork.Ticker
	registry        *registry
	cache           stateCache
	metrics         *metrics.HubMetrics
	outbox          *mirrorOutbox
	sendBuffer      int
	maxMessageBytes int64
	done            chan struct{}
	stopped         chan struct{}
	stopOnce        sync.Once
	stopTimeout     time.Duration
	commandTimeout  time.Duration
}

// NewHub creates a hub and starts its run loop. The heartbeat ticker is
// created here, so the first probe fires one interval after NewHub returns.
func NewHub(opts Options, clock clockwork.Clock, m *metrics.HubMetrics) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}

	h := &Hub{
		cmdCh:           make(chan hubCmd, 256),
		clock:           clock,
		heartbeat:       clock.NewTicker(opts.HeartbeatInterval),
		registry:        newRegistry(),
		metrics:         m,
		sendBuffer:      opts.SendBuffer,
		maxMessageBytes: opts.MaxMessageBytes,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
		stopTimeout:     stopTimeout,
		commandTimeout:  defaultCommandTimeout,
	}
	if opts.Publisher != nil {
		h.outbox = newMirrorOutbox(opts.Publisher)
	}
	go h.run()
	return h
}

// Serve registers conn, replays the latest snapshot to it and then reads
// frames until the connection fails or the hub shuts it down.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	peerID, err := h.connect(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	h.readLoop(logging.WithPeer(ctx, peerID), conn, peerID)
	return nil
}

func (h *Hub) connect(conn Conn) (string, error) {
	reply := make(chan string, 1)
	if !h.send(connectCmd{connection: conn, reply: reply}) {
		return "", domain.ErrHubStopped
	}

	timer := h.clock.NewTimer(h.commandTimeout)
	defer timer.Stop()

	select {
	case id := <-reply:
		return id, nil
	case <-h.done:
		return "", domain.ErrHubStopped
	case <-timer.Chan():
		// The hub still handles the queued connect later; undo it then.
		h.send(abandonCmd{connection: conn})
		return "", fmt.Errorf("connect: %w", domain.ErrCommandTimeout)
	}
}

func (h *Hub) readLoop(ctx context.Context, conn Conn, peerID string) {
	conn.SetReadLimit(h.maxMessageBytes)
	conn.SetPongHandler(func(string) error {
		h.send(pongCmd{peerID: peerID})
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "Peer read failed", "error", err)
			}
			break
		}
		if !h.send(messageCmd{peerID: peerID, data: data}) {
			return
		}
	}

	h.send(disconnectCmd{peerID: peerID})
}

// ApplyRemote injects a snapshot accepted by another relay instance.
func (h *Hub) ApplyRemote(snapshot domain.Snapshot) {
	h.send(remoteCmd{snapshot: snapshot})
}

// Stats returns the current peer count, how many answered the last probe
// and the cached snapshot, if any.
func (h *Hub) Stats() (Stats, error) {
	reply := make(chan Stats, 1)
	if !h.send(statsCmd{reply: reply}) {
		return Stats{}, domain.ErrHubStopped
	}

	timer := h.clock.NewTimer(h.commandTimeout)
	defer timer.Stop()

	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, domain.ErrHubStopped
	case <-timer.Chan():
		return Stats{}, fmt.Errorf("stats: %w", domain.ErrCommandTimeout)
	}
}

// Stop stops the heartbeat, closes every connection and waits for the
// run loop to exit. Calling Stop more than once is safe.
func (h *Hub) Stop() {
	if !h.send(stopCmd{}) {
		return
	}

	timeout := time.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.C:
		slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
	}
}

// send delivers cmd to the run loop unless the hub has already stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case <-h.stopped:
		return false
	default:
	}

	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.metrics.Panics.Inc()
			h.shutdown("internal error")
		}
	}()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case connectCmd:
				h.handleConnect(c)
			case messageCmd:
				h.handleMessage(c)
			case pongCmd:
				h.handlePong(c)
			case disconnectCmd:
				h.handleDisconnect(c)
			case remoteCmd:
				h.handleRemote(c)
			case abandonCmd:
				h.handleAbandon(c)
			case statsCmd:
				c.reply <- h.stats()
			case stopCmd:
				h.shutdown(shutdownReason)
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-h.heartbeat.Chan():
			h.handleHeartbeat()
		}
	}
}

func (h *Hub) handleConnect(c connectCmd) {
	if p, ok := h.registry.lookup(c.connection); ok {
		c.reply <- p.id
		return
	}

	p := h.registry.register(c.connection, newPeerWriter(c.connection, h.sendBuffer))
	h.metrics.ConnectionsTotal.Inc()
	h.metrics.ActiveConnections.Set(float64(h.registry.len()))
	slog.InfoContext(peerContext(p.id), "Peer connected", "peers", h.registry.len())

	if snapshot, ok := h.cache.get(); ok {
		data, err := encodeSnapshot(snapshot)
		if err != nil {
			slog.Error("Failed to encode replay", "error", err)
		} else if p.writer.enqueue(frame{messageType: websocket.TextMessage, data: data}) == sendQueued {
			h.metrics.MessagesSent.WithLabelValues(metrics.SendReplay).Inc()
		}
	}

	c.reply <- p.id
}

func (h *Hub) handleMessage(c messageCmd) {
	p, ok := h.registry.get(c.peerID)
	if !ok {
		return
	}

	result := Validate(c.data, p.lastValue)
	if !result.Accepted() {
		h.metrics.UpdatesRejected.WithLabelValues(string(result.Reason)).Inc()
		slog.DebugContext(peerContext(p.id), "Update rejected", "reason", result.Reason)
		return
	}

	h.publish(p, result.Value)
}

// publish caches the accepted value and fans it out to every peer except the sender.
func (h *Hub) publish(sender *peer, value float64) {
	snapshot := domain.Snapshot{
		Value:     value,
		Timestamp: h.clock.Now(),
		Origin:    sender.id,
	}
	h.cache.set(snapshot)
	sender.lastValue = &value
	h.metrics.UpdatesAccepted.Inc()

	h.fanOut(snapshot, sender.id)

	if h.outbox != nil {
		h.outbox.offer(snapshot)
	}
}

func (h *Hub) handleRemote(c remoteCmd) {
	s := c.snapshot
	if s.Value < domain.MinElixir || s.Value > domain.MaxElixir {
		slog.Warn("Dropping out of range remote snapshot", "origin", s.Origin, "value", s.Value)
		return
	}
	h.cache.set(s)
	h.fanOut(s, "")
}

// fanOut queues snapshot to every peer except excludeID. Peers whose writer
// has already exited are skipped; peers with a full queue are evicted.
func (h *Hub) fanOut(snapshot domain.Snapshot, excludeID string) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		slog.Error("Failed to encode broadcast", "error", err)
		return
	}

	var slow []string
	h.registry.forEachExcept(excludeID, func(p *peer) {
		switch p.writer.enqueue(frame{messageType: websocket.TextMessage, data: data}) {
		case sendQueued:
			h.metrics.MessagesSent.WithLabelValues(metrics.SendBroadcast).Inc()
		case sendFull:
			slow = append(slow, p.id)
		case sendClosed:
		}
	})

	for _, id := range slow {
		h.evict(id, metrics.EvictSlow)
	}
}

func (h *Hub) handlePong(c pongCmd) {
	if p, ok := h.registry.get(c.peerID); ok {
		markResponsive(p)
	}
}

func (h *Hub) handleHeartbeat() {
	var dead, slow []string
	h.registry.forEach(func(p *peer) {
		if !probe(p) {
			dead = append(dead, p.id)
			return
		}
		if p.writer.enqueue(pingFrame) == sendFull {
			slow = append(slow, p.id)
		}
	})

	for _, id := range dead {
		h.evict(id, metrics.EvictHeartbeat)
	}
	for _, id := range slow {
		h.evict(id, metrics.EvictSlow)
	}
}

func (h *Hub) handleDisconnect(c disconnectCmd) {
	p, ok := h.registry.unregister(c.peerID)
	if !ok {
		return
	}
	p.writer.stop()
	h.metrics.ActiveConnections.Set(float64(h.registry.len()))
	slog.InfoContext(peerContext(p.id), "Peer disconnected", "peers", h.registry.len())
}

func (h *Hub) handleAbandon(c abandonCmd) {
	p, ok := h.registry.lookup(c.connection)
	if !ok {
		return
	}
	h.registry.unregister(p.id)
	p.writer.stop()
	h.metrics.ActiveConnections.Set(float64(h.registry.len()))
	slog.InfoContext(peerContext(p.id), "Peer registration abandoned", "peers", h.registry.len())
}

func (h *Hub) evict(peerID, cause string) {
	p, ok := h.registry.unregister(peerID)
	if !ok {
		return
	}
	p.writer.stop()
	h.metrics.Evictions.WithLabelValues(cause).Inc()
	h.metrics.ActiveConnections.Set(float64(h.registry.len()))
	slog.InfoContext(peerContext(p.id), "Peer evicted", "cause", cause, "peers", h.registry.len())
}

func (h *Hub) stats() Stats {
	s := Stats{Peers: h.registry.len()}
	h.registry.forEach(func(p *peer) {
		if p.alive {
			s.Responsive++
		}
	})
	if snapshot, ok := h.cache.get(); ok {
		s.Snapshot = &snapshot
	}
	return s
}

// shutdown stops the heartbeat before closing connections so no probe
// races the drain.
func (h *Hub) shutdown(reason string) {
	h.stopOnce.Do(func() { close(h.stopped) })
	h.heartbeat.Stop()

	total := h.registry.len()
	slog.Info("Hub shutting down", "peers", total)

	if h.outbox != nil {
		h.outbox.close()
	}

	var wg sync.WaitGroup
	h.registry.forEach(func(p *peer) {
		h.registry.unregister(p.id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.writer.stopGraceful(reason)
		}()
	})
	wg.Wait()
	h.metrics.ActiveConnections.Set(0)

	slog.Info("Hub shutdown complete", "disconnected_peers", total)
}

func encodeSnapshot(s domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s.ToUpdate())
	if err != nil {
		return nil, fmt.Errorf("marshal update: %w", err)
	}
	return data, nil
}

// peerContext carries id so the logging handler tags records with peer_id.
func peerContext(id string) context.Context {
	return logging.WithPeer(context.Background(), id)
}

// IsStopped reports whether err means the hub is no longer accepting work.
func IsStopped(err error) bool {
	return errors.Is(err, domain.ErrHubStopped)
}
