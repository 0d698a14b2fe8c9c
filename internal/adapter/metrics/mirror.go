package metrics

import "github.com/prometheus/client_golang/prometheus"

// MirrorMetrics holds Prometheus metrics for the cross-instance snapshot mirror.
type MirrorMetrics struct {
	Published    *prometheus.CounterVec
	Received     prometheus.Counter
	CircuitState prometheus.Gauge
}

// NewMirrorMetrics creates and registers mirror metrics on the given registry.
func NewMirrorMetrics(reg prometheus.Registerer) *MirrorMetrics {
	m := &MirrorMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "published_total",
			Help:      "Total number of snapshots published to other instances, by status.",
		}, []string{"status"}),
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "received_total",
			Help:      "Total number of snapshots received from other instances.",
		}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "circuit_state",
			Help:      "Current mirror circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Published, m.Received, m.CircuitState)
	return m
}
