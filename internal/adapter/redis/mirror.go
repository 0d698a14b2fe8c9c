package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/kursun12/gardorop-relay/internal/adapter/metrics"
	"github.com/kursun12/gardorop-relay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Publish outcomes for MirrorMetrics.Published.
const (
	statusOK      = "ok"
	statusError   = "error"
	statusSkipped = "skipped"
)

var errMalformedMessage = errors.New("malformed mirror message")

// message is the wire form of a mirrored snapshot.
type message struct {
	Instance  string   `json:"instance"`
	Elixir    *float64 `json:"elixir"`
	Timestamp int64    `json:"timestamp"`
	From      string   `json:"from"`
}

// Mirror publishes local snapshots to a pub/sub channel and delivers
// snapshots published by other instances.
type Mirror struct {
	rdb        *goredis.Client
	channel    string
	instanceID string
	cb         circuitbreaker.CircuitBreaker[any]
	metrics    *metrics.MirrorMetrics
}

var _ domain.SnapshotPublisher = (*Mirror)(nil)

// NewMirror creates a mirror on channel with a fresh instance identity.
// Publishes are guarded by a circuit breaker:
// - 60% failure rate over at least 5 publishes in a 10s window opens it
// - it half-opens after 30s and closes on the first success
func NewMirror(rdb *goredis.Client, channel string, m *metrics.MirrorMetrics) *Mirror {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Mirror circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			m.CircuitState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Mirror{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		cb:         cb,
		metrics:    m,
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// InstanceID identifies this process on the channel.
func (m *Mirror) InstanceID() string {
	return m.instanceID
}

// PublishSnapshot sends s to the other instances. While the breaker is open
// the publish is skipped and circuitbreaker.ErrOpen is returned.
func (m *Mirror) PublishSnapshot(ctx context.Context, s domain.Snapshot) error {
	if !m.cb.TryAcquirePermit() {
		m.metrics.Published.WithLabelValues(statusSkipped).Inc()
		return fmt.Errorf("mirror publish skipped: %w", circuitbreaker.ErrOpen)
	}

	payload, err := encodeMessage(m.instanceID, s)
	if err != nil {
		m.cb.RecordSuccess()
		return err
	}

	if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
		m.cb.RecordError(err)
		m.metrics.Published.WithLabelValues(statusError).Inc()
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	m.cb.RecordSuccess()
	m.metrics.Published.WithLabelValues(statusOK).Inc()
	return nil
}

// Run subscribes to the channel and calls apply for every snapshot another
// instance publishes. It returns when ctx is cancelled or the subscription
// closes.
func (m *Mirror) Run(ctx context.Context, apply func(domain.Snapshot)) error {
	pubsub := m.rdb.Subscribe(ctx, m.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", m.channel, err)
	}
	slog.Info("Mirror subscribed", "channel", m.channel, "instance", m.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m.handle(msg.Payload, apply)
		}
	}
}

// Ping reports whether Redis is reachable; used as a readiness check.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

func (m *Mirror) handle(payload string, apply func(domain.Snapshot)) {
	instance, s, err := decodeMessage(payload)
	if err != nil {
		slog.Warn("Discarding mirror message", "error", err)
		return
	}
	if instance == m.instanceID {
		return
	}
	m.metrics.Received.Inc()
	apply(s)
}

func encodeMessage(instance string, s domain.Snapshot) (string, error) {
	data, err := json.Marshal(message{
		Instance:  instance,
		Elixir:    &s.Value,
		Timestamp: s.Timestamp.UnixMilli(),
		From:      s.Origin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(data), nil
}

func decodeMessage(payload string) (string, domain.Snapshot, error) {
	var msg message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", domain.Snapshot{}, fmt.Errorf("%w: %w", errMalformedMessage, err)
	}
	if msg.Instance == "" {
		return "", domain.Snapshot{}, fmt.Errorf("%w: missing instance", errMalformedMessage)
	}
	if msg.Elixir == nil {
		return "", domain.Snapshot{}, fmt.Errorf("%w: missing elixir", errMalformedMessage)
	}
	return msg.Instance, domain.Snapshot{
		Value:     *msg.Elixir,
		Timestamp: time.UnixMilli(msg.Timestamp),
		Origin:    msg.From,
	}, nil
}
