package urmp

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Pablu23/Urmp/internal/metrics"
)

type eventKind uint8

const (
	eventMessage eventKind = iota
	eventConnected
	eventDisconnected
)

// inboundEvent crosses from the transport goroutine to the tick goroutine.
type inboundEvent struct {
	kind   eventKind
	msg    *Message
	conn   *Connection
	reason DisconnectReason
}

// peer is the engine shared by Server and Client: the clock, the scheduler,
// the connection table and the inbound queue. Server and Client compose a
// peer and differ only in connection-acceptance policy.
//
// The inbound queue is the single producer/consumer boundary between the
// transport's receive goroutine and the goroutine calling Tick. Connection
// state is additionally mutex-guarded because dedup and ack bookkeeping run
// on the receive goroutine (see handleData).
type peer struct {
	sched   *scheduler
	opts    *Options
	metrics *metrics.Collector

	transport Transport
	started   bool
	startedMu sync.Mutex

	connsMu sync.RWMutex
	conns   map[string]*Connection

	queueMu sync.Mutex
	queue   []inboundEvent

	// Wired by Server/Client before the transport starts.
	handle            func(m *Message, c *Connection)
	onConnect         func(c *Connection)
	onDisconnect      func(c *Connection, reason DisconnectReason)
	acceptConnections bool
}

func newPeer(opts *Options) *peer {
	return &peer{
		sched:   newScheduler(),
		opts:    opts,
		metrics: metrics.New(opts.Metrics),
		conns:   make(map[string]*Connection),
	}
}

// startTime starts the clock and wires the transport's receive callback.
func (p *peer) startTime(t Transport) error {
	p.startedMu.Lock()
	p.transport = t
	p.started = true
	p.startedMu.Unlock()
	return t.Start(p.handleData)
}

// stopTime stops the clock and discards every scheduled event. No resend or
// heartbeat fires after this returns. Inbound messages already queued are
// still delivered by later Tick calls.
func (p *peer) stopTime() {
	p.startedMu.Lock()
	p.started = false
	p.startedMu.Unlock()
	p.sched.clear()
}

func (p *peer) isStarted() bool {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()
	return p.started
}

// tick runs due scheduled events, then drains the inbound queue on the
// caller's goroutine.
func (p *peer) tick() {
	if p.isStarted() {
		p.sched.tick()
	}
	p.handleMessages()
}

func (p *peer) handleMessages() {
	p.queueMu.Lock()
	events := p.queue
	p.queue = nil
	p.queueMu.Unlock()

	for _, ev := range events {
		switch ev.kind {
		case eventMessage:
			if p.handle != nil {
				p.handle(ev.msg, ev.conn)
			}
			p.metrics.MessageDelivered()
			ev.msg.Release()
		case eventConnected:
			if p.onConnect != nil {
				p.onConnect(ev.conn)
			}
		case eventDisconnected:
			if p.onDisconnect != nil {
				p.onDisconnect(ev.conn, ev.reason)
			}
		}
	}
}

func (p *peer) enqueue(ev inboundEvent) {
	p.queueMu.Lock()
	p.queue = append(p.queue, ev)
	p.queueMu.Unlock()
}

// handleData is the transport's receive callback. It parses the header byte,
// reconstructs reliability framing, runs dedup and ack bookkeeping, and
// queues application messages for the next Tick. Malformed or too-short
// packets are silently dropped; anyone on the network can produce them and
// they must never take the peer down.
func (p *peer) handleData(data []byte, addr net.Addr) {
	if len(data) < HeaderSize || !p.isStarted() {
		return
	}
	header := HeaderType(data[0])
	p.metrics.PacketReceived(header.String())

	switch header {
	case HeaderConnect:
		p.handleConnect(addr)

	case HeaderConnectAccept:
		p.handleConnectAccept(addr)

	case HeaderReliable:
		if len(data) < ReliableHeaderSize {
			return
		}
		c := p.connection(addr)
		if c == nil {
			return
		}
		seq := binary.LittleEndian.Uint16(data[1:3])
		isNew, latest, bits := c.reliableHandle(seq)
		// Acked even when duplicate, so the sender can retire the payload.
		p.sendAck(c, latest, bits)
		if !isNew {
			p.metrics.Duplicate()
			return
		}
		p.enqueue(inboundEvent{kind: eventMessage, msg: messageForReceiving(header, data), conn: c})

	case HeaderUnreliable:
		c := p.connection(addr)
		if c == nil {
			return
		}
		c.touch()
		p.enqueue(inboundEvent{kind: eventMessage, msg: messageForReceiving(header, data), conn: c})

	case HeaderAck:
		if len(data) < AckPacketSize {
			return
		}
		c := p.connection(addr)
		if c == nil {
			return
		}
		c.applyAck(binary.LittleEndian.Uint16(data[1:3]), binary.LittleEndian.Uint32(data[3:7]))

	case HeaderHeartbeat:
		if len(data) < HeaderSize+4 {
			return
		}
		c := p.connection(addr)
		if c == nil {
			return
		}
		c.touch()
		m := newMessage(HeaderHeartbeatAck)
		_ = m.WriteUint32(binary.LittleEndian.Uint32(data[1:5]))
		_ = p.sendFrame(m.bytes(), addr, HeaderHeartbeatAck)
		m.Release()

	case HeaderHeartbeatAck:
		if len(data) < HeaderSize+4 {
			return
		}
		c := p.connection(addr)
		if c == nil {
			return
		}
		sent := int64(binary.LittleEndian.Uint32(data[1:5]))
		sample := time.Duration(p.sched.currentTime()-sent) * time.Millisecond
		if sample >= 0 {
			rtt := c.updateRTT(sample)
			p.metrics.ObserveRTT(rtt)
		}

	case HeaderDisconnect:
		c := p.connection(addr)
		if c == nil {
			return
		}
		reason := ReasonDisconnected
		if len(data) >= 2 {
			reason = DisconnectReason(data[1])
		}
		p.closeConnection(c, reason, false)
	}
}

func (p *peer) handleConnect(addr net.Addr) {
	if !p.acceptConnections {
		return
	}
	p.connsMu.Lock()
	if _, ok := p.conns[addr.String()]; ok {
		p.connsMu.Unlock()
		// The accept was lost; answer the repeated handshake again.
		p.sendControl(HeaderConnectAccept, addr)
		return
	}
	if p.opts.MaxConnections > 0 && len(p.conns) >= p.opts.MaxConnections {
		p.connsMu.Unlock()
		log.WithField("RemoteAddr", addr).Warn("Rejecting connection, server full")
		p.sendDisconnect(addr, ReasonNeverConnected)
		return
	}
	c := newConnection(p, addr, stateConnected)
	p.conns[addr.String()] = c
	p.connsMu.Unlock()

	p.sendControl(HeaderConnectAccept, addr)
	p.scheduleHeartbeat(c)
	p.metrics.ConnectionOpened()
	log.WithFields(log.Fields{
		"ConnectionID": c.id,
		"RemoteAddr":   addr,
	}).Info("Accepted connection")
	p.enqueue(inboundEvent{kind: eventConnected, conn: c})
}

func (p *peer) handleConnectAccept(addr net.Addr) {
	c := p.connection(addr)
	if c == nil || !c.setConnected() {
		return
	}
	p.scheduleHeartbeat(c)
	p.metrics.ConnectionOpened()
	log.WithFields(log.Fields{
		"ConnectionID": c.id,
		"RemoteAddr":   addr,
	}).Info("Connection established")
	p.enqueue(inboundEvent{kind: eventConnected, conn: c})
}

func (p *peer) connection(addr net.Addr) *Connection {
	p.connsMu.RLock()
	defer p.connsMu.RUnlock()
	return p.conns[addr.String()]
}

func (p *peer) connections() []*Connection {
	p.connsMu.RLock()
	defer p.connsMu.RUnlock()
	out := make([]*Connection, 0, len(p.conns))
	for _, c := range p.conns {
		out = append(out, c)
	}
	return out
}

func (p *peer) addConnection(addr net.Addr, state connectionState) *Connection {
	c := newConnection(p, addr, state)
	p.connsMu.Lock()
	p.conns[addr.String()] = c
	p.connsMu.Unlock()
	return c
}

// closeConnection tears down one connection without touching any other. The
// disconnect reason reaches the embedder through the OnDisconnect callback
// and, when notify is set, the remote end through a disconnect packet.
func (p *peer) closeConnection(c *Connection, reason DisconnectReason, notify bool) {
	if notify {
		c.setDisconnecting()
		p.sendDisconnect(c.addr, reason)
	}
	if !c.markClosed(reason) {
		return
	}

	p.connsMu.Lock()
	delete(p.conns, c.addr.String())
	p.connsMu.Unlock()

	p.metrics.ConnectionClosed()
	log.WithFields(log.Fields{
		"ConnectionID": c.id,
		"RemoteAddr":   c.addr,
		"Reason":       reason.String(),
	}).Info("Closed connection")
	p.enqueue(inboundEvent{kind: eventDisconnected, conn: c, reason: reason})
}

// scheduleHeartbeat arms the periodic liveness probe for c. The event
// re-arms itself while the connection stays open, re-reading the configured
// intervals so runtime changes apply from the next check onward.
func (p *peer) scheduleHeartbeat(c *Connection) {
	p.sched.schedule(p.opts.HeartbeatInterval, func() {
		if !c.isOpen() {
			return
		}
		now := p.sched.currentTime()
		if now-c.lastReceiveTime() >= p.opts.TimeoutTime.Milliseconds() {
			p.closeConnection(c, ReasonTimedOut, false)
			return
		}
		p.sendHeartbeat(c)
		p.scheduleHeartbeat(c)
	})
}

func (p *peer) sendHeartbeat(c *Connection) {
	m := newMessage(HeaderHeartbeat)
	_ = m.WriteUint32(uint32(p.sched.currentTime()))
	_ = p.sendFrame(m.bytes(), c.addr, HeaderHeartbeat)
	m.Release()
}

// scheduleResend arms the retry timer for one reliable send. Each firing
// retransmits the stored frame and re-arms until the ack arrives or the
// resend ceiling fails the connection.
func (p *peer) scheduleResend(c *Connection, seq uint16) {
	p.sched.schedule(p.opts.ResendInterval, func() {
		frame, failed := c.retransmit(seq, p.opts.MaxResends)
		if failed {
			log.WithFields(log.Fields{
				"ConnectionID": c.id,
				"SequenceID":   seq,
			}).Warn("Reliable send exceeded resend limit")
			p.closeConnection(c, ReasonTransportError, true)
			return
		}
		if frame == nil {
			return
		}
		p.metrics.Resend()
		_ = p.sendFrame(frame, c.addr, HeaderReliable)
		p.scheduleResend(c, seq)
	})
}

func (p *peer) sendAck(c *Connection, latest uint16, bits uint32) {
	m := newMessage(HeaderAck)
	_ = m.WriteUint16(latest)
	_ = m.WriteUint32(bits)
	_ = p.sendFrame(m.bytes(), c.addr, HeaderAck)
	m.Release()
}

func (p *peer) sendControl(header HeaderType, addr net.Addr) {
	m := newMessage(header)
	_ = p.sendFrame(m.bytes(), addr, header)
	m.Release()
}

func (p *peer) sendDisconnect(addr net.Addr, reason DisconnectReason) {
	m := newMessage(HeaderDisconnect)
	_ = m.WriteByte(byte(reason))
	_ = p.sendFrame(m.bytes(), addr, HeaderDisconnect)
	m.Release()
}

// sendFrame hands one wire frame to the transport. Send errors are logged
// and surfaced to the caller but do not tear the connection down by
// themselves; persistent loss is caught by the resend ceiling and the
// timeout check instead.
func (p *peer) sendFrame(frame []byte, addr net.Addr, header HeaderType) error {
	p.startedMu.Lock()
	t := p.transport
	p.startedMu.Unlock()
	if t == nil {
		return ErrPeerStopped
	}
	if err := t.Send(frame, addr); err != nil {
		log.WithError(err).WithField("RemoteAddr", addr).Warn("Could not send datagram")
		return err
	}
	p.metrics.PacketSent(header.String())
	return nil
}
