package urmp

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client initiates a single connection to a server over one transport. Like
// Server it is only acceptance policy: the reliability engine is the shared
// peer underneath.
type Client struct {
	peer     *peer
	registry *Registry
	opts     *Options

	conn *Connection

	onConnected    func()
	onDisconnected func(reason DisconnectReason)
}

func NewClient(opts ...func(*Options)) *Client {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		registry: newRegistry(),
		opts:     options,
	}
	c.peer = newPeer(options)
	c.peer.handle = c.registry.dispatch
	c.peer.onConnect = func(*Connection) {
		if c.onConnected != nil {
			c.onConnected()
		}
	}
	c.peer.onDisconnect = func(_ *Connection, reason DisconnectReason) {
		if c.onDisconnected != nil {
			c.onDisconnected(reason)
		}
	}
	return c
}

// Connect starts the transport and begins the handshake. The handshake is
// retried every ResendInterval; after MaxResends unanswered attempts the
// connection closes with ReasonNeverConnected. Completion is reported
// through OnConnected, delivered by Tick.
func (c *Client) Connect(t Transport) error {
	remote := t.RemoteAddr()
	if remote == nil {
		return fmt.Errorf("transport has no remote address, dial it first")
	}
	if err := c.peer.startTime(t); err != nil {
		return err
	}
	c.conn = c.peer.addConnection(remote, statePending)
	log.WithField("RemoteAddr", remote).Info("Connecting")

	c.peer.sendControl(HeaderConnect, remote)
	c.scheduleConnectRetry(1)
	return nil
}

func (c *Client) scheduleConnectRetry(attempts int) {
	conn := c.conn
	c.peer.sched.schedule(c.opts.ResendInterval, func() {
		if !conn.isPending() {
			return
		}
		if attempts >= c.opts.MaxResends {
			log.WithField("RemoteAddr", conn.addr).Warn("Handshake got no answer")
			c.peer.closeConnection(conn, ReasonNeverConnected, false)
			return
		}
		c.peer.sendControl(HeaderConnect, conn.addr)
		c.scheduleConnectRetry(attempts + 1)
	})
}

// Disconnect notifies the server and tears the connection down.
func (c *Client) Disconnect() {
	if c.conn != nil {
		c.peer.closeConnection(c.conn, ReasonDisconnected, true)
	}
	c.peer.stopTime()
	if c.peer.transport != nil {
		if err := c.peer.transport.Close(); err != nil {
			log.WithError(err).Warn("Could not close transport")
		}
	}
}

// Tick runs due timers and dispatches queued inbound messages on the
// caller's goroutine.
func (c *Client) Tick() {
	c.peer.tick()
}

// Send transmits m to the server and releases m.
func (c *Client) Send(m *Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.send(m)
}

// IsConnected reports whether the handshake completed and the connection is
// still up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Connection returns the connection to the server, or nil before Connect.
func (c *Client) Connection() *Connection {
	return c.conn
}

// RTT returns the smoothed round-trip time to the server.
func (c *Client) RTT() time.Duration {
	if c.conn == nil {
		return 0
	}
	return c.conn.RTT()
}

// Handle registers fn for message id. See Registry.Register.
func (c *Client) Handle(id uint16, fn HandlerFunc) (*HandlerRegistration, error) {
	return c.registry.Register(id, fn)
}

// OnConnected sets the callback invoked (from Tick) when the handshake
// completes.
func (c *Client) OnConnected(fn func()) {
	c.onConnected = fn
}

// OnDisconnected sets the callback invoked (from Tick) when the connection
// closes, with the reason.
func (c *Client) OnDisconnected(fn func(reason DisconnectReason)) {
	c.onDisconnected = fn
}

// SetTimeoutTime changes the silence window after which the connection is
// dropped. Takes effect from the next heartbeat check.
func (c *Client) SetTimeoutTime(d time.Duration) {
	c.opts.TimeoutTime = d
}

// SetHeartbeatInterval changes the liveness probe interval. Takes effect
// from the next scheduled heartbeat.
func (c *Client) SetHeartbeatInterval(d time.Duration) {
	c.opts.HeartbeatInterval = d
}
