package urmp

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

type connectionState uint8

const (
	statePending connectionState = iota
	stateConnected
	stateDisconnecting
	stateClosed
)

// pendingSend is one unacknowledged reliable transmission. Owned exclusively
// by the sending connection; removed when an ack bit confirms receipt or the
// connection is dropped.
type pendingSend struct {
	sequenceID uint16
	frame      []byte
	lastSend   int64
	resends    int
}

// Connection holds the per-remote reliability state: sequence counters for
// both directions, the receive dedup window, the set of unacknowledged
// sends and the liveness timers.
//
// The mutex is required because the transport's receive callback may run on
// a different goroutine than the tick loop that drives resends and
// heartbeats.
type Connection struct {
	id   uuid.UUID
	addr net.Addr
	peer *peer

	mu       sync.Mutex
	state    connectionState
	sendSeq  uint16
	window   receiveWindow
	pending  map[uint16]*pendingSend
	lastRecv int64
	rtt      time.Duration
	rttKnown bool
	reason   DisconnectReason
}

func newConnection(p *peer, addr net.Addr, state connectionState) *Connection {
	return &Connection{
		id:       uuid.New(),
		addr:     addr,
		peer:     p,
		state:    state,
		pending:  make(map[uint16]*pendingSend),
		lastRecv: p.sched.currentTime(),
	}
}

// ID identifies the connection locally, for logs and bookkeeping. It never
// crosses the wire.
func (c *Connection) ID() uuid.UUID { return c.id }

// RemoteAddr returns the remote endpoint the connection talks to.
func (c *Connection) RemoteAddr() net.Addr { return c.addr }

// IsConnected reports whether the connection is fully established.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// RTT returns the smoothed round-trip time, or zero before the first
// heartbeat completed.
func (c *Connection) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// DisconnectReason returns why the connection closed. Only meaningful once
// the connection reached the closed state.
func (c *Connection) DisconnectReason() DisconnectReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// send transmits m and releases it. Reliable messages get the next sequence
// id stamped into the wire header and a resend timer armed.
func (c *Connection) send(m *Message) error {
	defer m.Release()

	c.mu.Lock()
	if c.state != stateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}

	if m.mode != Reliable {
		frame := m.bytes()
		c.mu.Unlock()
		return c.peer.sendFrame(frame, c.addr, m.header)
	}

	c.sendSeq++
	seq := c.sendSeq
	binary.LittleEndian.PutUint16(m.buf[1:3], seq)

	frame := make([]byte, m.writePos)
	copy(frame, m.bytes())
	c.pending[seq] = &pendingSend{
		sequenceID: seq,
		frame:      frame,
		lastSend:   c.peer.sched.currentTime(),
	}
	c.mu.Unlock()

	err := c.peer.sendFrame(frame, c.addr, HeaderReliable)
	c.peer.scheduleResend(c, seq)
	return err
}

// reliableHandle records a received reliable sequence id and reports whether
// the message is new, together with a consistent snapshot of the ack state
// to transmit back. Duplicates still produce an ack so the remote sender can
// retire its pending send.
func (c *Connection) reliableHandle(seq uint16) (isNew bool, latest uint16, ackBits uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRecv = c.peer.sched.currentTime()
	isNew = c.window.handle(seq)
	return isNew, c.window.latest, c.window.ackBits()
}

// applyAck retires every pending send the bitfield confirms. Acks for ids
// that were never sent (or already retired) are tolerated as no-ops.
func (c *Connection) applyAck(latest uint16, bits uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRecv = c.peer.sched.currentTime()
	delete(c.pending, latest)
	for i := 0; i < AckWindowSize; i++ {
		if bits&(1<<i) != 0 {
			delete(c.pending, latest-uint16(i)-1)
		}
	}
}

// retransmit fetches the frame for one more resend attempt. It returns a nil
// frame when the send was acknowledged in the meantime or the connection is
// gone, and failed=true when the resend ceiling is exceeded.
func (c *Connection) retransmit(seq uint16, maxResends int) (frame []byte, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil, false
	}
	ps, ok := c.pending[seq]
	if !ok {
		return nil, false
	}
	if ps.resends >= maxResends {
		return nil, true
	}
	ps.resends++
	ps.lastSend = c.peer.sched.currentTime()
	return ps.frame, false
}

// touch records inbound traffic for the timeout check.
func (c *Connection) touch() {
	c.mu.Lock()
	c.lastRecv = c.peer.sched.currentTime()
	c.mu.Unlock()
}

func (c *Connection) lastReceiveTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRecv
}

// updateRTT folds a heartbeat round-trip sample into the smoothed estimate.
func (c *Connection) updateRTT(sample time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRecv = c.peer.sched.currentTime()
	if !c.rttKnown {
		c.rtt = sample
		c.rttKnown = true
	} else {
		c.rtt = (c.rtt*7 + sample) / 8
	}
	return c.rtt
}

// setConnected moves a pending connection to connected. Returns false if the
// handshake already completed or the connection is closed.
func (c *Connection) setConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePending {
		return false
	}
	c.state = stateConnected
	c.lastRecv = c.peer.sched.currentTime()
	return true
}

// setDisconnecting marks a deliberate local teardown in progress so no new
// sends are accepted while the notify packet goes out.
func (c *Connection) setDisconnecting() {
	c.mu.Lock()
	if c.state == stateConnected || c.state == statePending {
		c.state = stateDisconnecting
	}
	c.mu.Unlock()
}

// markClosed transitions to the terminal state and releases all pending
// sends. Returns false if the connection was already closed.
func (c *Connection) markClosed(reason DisconnectReason) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return false
	}
	c.state = stateClosed
	c.reason = reason
	c.pending = make(map[uint16]*pendingSend)
	return true
}

func (c *Connection) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected || c.state == statePending
}

func (c *Connection) isPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == statePending
}

func (c *Connection) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
