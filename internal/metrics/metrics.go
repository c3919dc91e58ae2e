// Package metrics exposes Prometheus collectors for the chat core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "channelchat"

// Metrics implements core.Recorder on top of Prometheus collectors.
type Metrics struct {
	dropped     prometheus.Counter
	posted      prometheus.Counter
	connections prometheus.Gauge
	channels    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which is handy in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "core",
			Name:      "dropped_events_total",
			Help:      "Events dropped because a connection's outbound queue was full.",
		}),
		posted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "core",
			Name:      "messages_posted_total",
			Help:      "Messages accepted by channels.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "core",
			Name:      "connections",
			Help:      "Currently open client connections.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "core",
			Name:      "channels",
			Help:      "Currently active channels.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.dropped, m.posted, m.connections, m.channels)
	}
	return m
}

func (m *Metrics) EventDropped()     { m.dropped.Inc() }
func (m *Metrics) MessagePosted()    { m.posted.Inc() }
func (m *Metrics) ConnectionOpened() { m.connections.Inc() }
func (m *Metrics) ConnectionClosed() { m.connections.Dec() }
func (m *Metrics) ChannelCreated()   { m.channels.Inc() }
func (m *Metrics) ChannelRemoved()   { m.channels.Dec() }
