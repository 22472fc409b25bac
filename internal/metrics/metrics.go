// Package metrics holds the optional Prometheus instrumentation for the
// reliability engine. A nil *Collector is valid and records nothing, so the
// engine never has to check whether metrics were configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the engine's Prometheus metrics.
type Collector struct {
	packetsSent       *prometheus.CounterVec
	packetsReceived   *prometheus.CounterVec
	resends           prometheus.Counter
	duplicates        prometheus.Counter
	messagesDelivered prometheus.Counter
	activeConnections prometheus.Gauge
	roundTripTime     prometheus.Histogram
}

// New registers the engine metrics with reg and returns a Collector. Passing
// a nil Registerer returns nil, the no-op collector.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &Collector{
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urmp",
			Name:      "packets_sent_total",
			Help:      "Datagrams sent, by header type",
		}, []string{"type"}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urmp",
			Name:      "packets_received_total",
			Help:      "Datagrams received, by header type",
		}, []string{"type"}),

		resends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urmp",
			Name:      "resends_total",
			Help:      "Reliable payload retransmissions",
		}),

		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urmp",
			Name:      "duplicates_total",
			Help:      "Reliable packets discarded as duplicates",
		}),

		messagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "urmp",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to the application",
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "urmp",
			Name:      "active_connections",
			Help:      "Connections currently in the connected state",
		}),

		roundTripTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "urmp",
			Name:      "round_trip_seconds",
			Help:      "Smoothed heartbeat round-trip time",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (c *Collector) PacketSent(headerType string) {
	if c == nil {
		return
	}
	c.packetsSent.WithLabelValues(headerType).Inc()
}

func (c *Collector) PacketReceived(headerType string) {
	if c == nil {
		return
	}
	c.packetsReceived.WithLabelValues(headerType).Inc()
}

func (c *Collector) Resend() {
	if c == nil {
		return
	}
	c.resends.Inc()
}

func (c *Collector) Duplicate() {
	if c == nil {
		return
	}
	c.duplicates.Inc()
}

func (c *Collector) MessageDelivered() {
	if c == nil {
		return
	}
	c.messagesDelivered.Inc()
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.activeConnections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.activeConnections.Dec()
}

func (c *Collector) ObserveRTT(rtt time.Duration) {
	if c == nil {
		return
	}
	c.roundTripTime.Observe(rtt.Seconds())
}
