package metrics

import (
	"github.com/kursun12/gardorop-relay/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Send kinds for MessagesSent.
const (
	SendBroadcast = "broadcast"
	SendReplay    = "replay"
)

// Eviction causes for Evictions.
const (
	EvictHeartbeat = "heartbeat"
	EvictSlow      = "slow"
)

// HubMetrics holds Prometheus metrics for the relay hub.
type HubMetrics struct {
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	UpdatesAccepted   prometheus.Counter
	UpdatesRejected   *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	Evictions         *prometheus.CounterVec
	Panics            prometheus.Counter
}

// NewHubMetrics creates and registers hub metrics on the given registry.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of peers currently registered with the hub.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of peers registered since start.",
		}),
		UpdatesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_accepted_total",
			Help:      "Total number of inbound updates accepted and broadcast.",
		}),
		UpdatesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_rejected_total",
			Help:      "Total number of inbound updates dropped, by reason.",
		}, []string{"reason"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of update frames queued to peers, by kind.",
		}, []string{"kind"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of peers forcibly disconnected, by cause.",
		}, []string{"cause"}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_panics_total",
			Help:      "Total number of recovered panics in the hub loop.",
		}),
	}

	// Pre-create label values so they show up as zero before the first event.
	for _, reason := range domain.AllRejectReasons {
		m.UpdatesRejected.WithLabelValues(string(reason))
	}
	m.MessagesSent.WithLabelValues(SendBroadcast)
	m.MessagesSent.WithLabelValues(SendReplay)
	m.Evictions.WithLabelValues(EvictHeartbeat)
	m.Evictions.WithLabelValues(EvictSlow)

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.UpdatesAccepted,
		m.UpdatesRejected,
		m.MessagesSent,
		m.Evictions,
		m.Panics,
	)
	return m
}
