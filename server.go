package urmp

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Server accepts connections from many clients over one transport. It is a
// thin acceptance policy around the shared peer engine: everything about
// sequencing, acks, resends and liveness lives there.
//
// The embedder drives it by calling Tick once per frame from a single
// goroutine; all callbacks and handlers run on that goroutine.
type Server struct {
	peer     *peer
	registry *Registry
	opts     *Options

	onConnect    func(c *Connection)
	onDisconnect func(c *Connection, reason DisconnectReason)
}

func NewServer(opts ...func(*Options)) *Server {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Server{
		registry: newRegistry(),
		opts:     options,
	}
	s.peer = newPeer(options)
	s.peer.acceptConnections = true
	s.peer.handle = s.registry.dispatch
	s.peer.onConnect = func(c *Connection) {
		if s.onConnect != nil {
			s.onConnect(c)
		}
	}
	s.peer.onDisconnect = func(c *Connection, reason DisconnectReason) {
		if s.onDisconnect != nil {
			s.onDisconnect(c, reason)
		}
	}
	return s
}

// Start begins accepting connections on t.
func (s *Server) Start(t Transport) error {
	if err := s.peer.startTime(t); err != nil {
		return err
	}
	log.WithField("Addr", t.Addr()).Info("Server started")
	return nil
}

// Stop notifies every client, closes all connections and discards every
// scheduled event. A stopped server never fires another heartbeat or
// resend. Disconnect callbacks for the final teardown are delivered by Tick
// calls made after Stop, or dropped if none come.
func (s *Server) Stop() {
	for _, c := range s.peer.connections() {
		s.peer.closeConnection(c, ReasonServerStopped, true)
	}
	s.peer.stopTime()
	if s.peer.transport != nil {
		if err := s.peer.transport.Close(); err != nil {
			log.WithError(err).Warn("Could not close transport")
		}
	}
	log.Info("Server stopped")
}

// Tick runs due timers and dispatches queued inbound messages on the
// caller's goroutine.
func (s *Server) Tick() {
	s.peer.tick()
}

// Send transmits m to c and releases m.
func (s *Server) Send(m *Message, c *Connection) error {
	return c.send(m)
}

// Broadcast sends a copy of m to every connection, then releases m.
func (s *Server) Broadcast(m *Message) {
	defer m.Release()
	for _, c := range s.peer.connections() {
		clone := newMessage(m.header)
		copy(clone.buf, m.buf[:m.writePos])
		clone.writePos = m.writePos
		if err := c.send(clone); err != nil {
			log.WithError(err).WithField("ConnectionID", c.ID()).Warn("Broadcast send failed")
		}
	}
}

// Kick forcefully disconnects c with ReasonKicked.
func (s *Server) Kick(c *Connection) {
	s.peer.closeConnection(c, ReasonKicked, true)
}

// Handle registers fn for message id. See Registry.Register.
func (s *Server) Handle(id uint16, fn HandlerFunc) (*HandlerRegistration, error) {
	return s.registry.Register(id, fn)
}

// OnConnect sets the callback invoked (from Tick) when a client finishes
// the handshake.
func (s *Server) OnConnect(fn func(c *Connection)) {
	s.onConnect = fn
}

// OnDisconnect sets the callback invoked (from Tick) when a connection
// closes, with the reason.
func (s *Server) OnDisconnect(fn func(c *Connection, reason DisconnectReason)) {
	s.onDisconnect = fn
}

// Connections snapshots the currently tracked connections.
func (s *Server) Connections() []*Connection {
	return s.peer.connections()
}

// ConnectionCount returns how many connections are tracked.
func (s *Server) ConnectionCount() int {
	return len(s.peer.connections())
}

// SetTimeoutTime changes the silence window after which connections are
// dropped. Takes effect from the next heartbeat check.
func (s *Server) SetTimeoutTime(d time.Duration) {
	s.opts.TimeoutTime = d
}

// SetHeartbeatInterval changes the liveness probe interval. Takes effect
// from the next scheduled heartbeat.
func (s *Server) SetHeartbeatInterval(d time.Duration) {
	s.opts.HeartbeatInterval = d
}
