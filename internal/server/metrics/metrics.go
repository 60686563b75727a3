// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdcc"

type Metrics struct {
	Connections   prometheus.Gauge
	Authenticated prometheus.Gauge
	Frames        *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Closes        *prometheus.CounterVec
	Messages      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
}

// New registers the collectors with reg. Passing nil registers nothing,
// which keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		Authenticated: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authenticated_sessions",
			Help:      "Connections bound to an identity.",
		}),
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames by type.",
		}, []string{"type"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
		Closes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_closes_total",
			Help:      "Server-initiated closes by reason.",
		}, []string{"reason"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Routed chat messages by kind.",
		}, []string{"kind"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error frames sent to clients by class.",
		}, []string{"class"}),
	}
}
