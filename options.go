package urmp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Options is the configuration surface shared by Server and Client. All
// fields are read from the goroutine driving Tick; TimeoutTime and
// HeartbeatInterval may be changed at runtime and take effect from the next
// scheduled heartbeat check onward.
type Options struct {
	// TimeoutTime is how long a connection may stay silent before it is
	// closed with ReasonTimedOut.
	TimeoutTime time.Duration

	// HeartbeatInterval is how often each connection probes its remote end
	// and checks TimeoutTime.
	HeartbeatInterval time.Duration

	// ResendInterval is the retry interval for unacknowledged reliable
	// sends. Both ends of a link must use the same value; it is part of the
	// working parameters of the wire contract.
	ResendInterval time.Duration

	// MaxResends is how often one reliable payload is retransmitted before
	// the connection is treated as failed.
	MaxResends int

	// MaxConnections caps how many connections a server accepts. Zero means
	// unlimited. Ignored by clients.
	MaxConnections int

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics prometheus.Registerer
}

func NewDefaultOptions() *Options {
	return &Options{
		TimeoutTime:       5000 * time.Millisecond,
		HeartbeatInterval: 1000 * time.Millisecond,
		ResendInterval:    100 * time.Millisecond,
		MaxResends:        10,
		MaxConnections:    0,
	}
}
