package urmp

import (
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Transport moves raw datagrams between peers. Implementations must deliver
// received datagrams to the callback passed to Start and must not retain the
// slice passed to Send after it returns.
type Transport interface {
	// Start begins delivering received datagrams to receive. The callback
	// may be invoked from a different goroutine than the one driving Tick.
	Start(receive func(data []byte, addr net.Addr)) error
	// Send transmits one datagram to addr.
	Send(data []byte, addr net.Addr) error
	// Addr returns the local address.
	Addr() net.Addr
	// RemoteAddr returns the fixed remote address of a dialed transport, or
	// nil for a listening one.
	RemoteAddr() net.Addr
	Close() error
}

// UDPTransport is the standard Transport over a UDP socket. A listening
// transport serves many remote addresses; a dialed one talks to exactly one.
type UDPTransport struct {
	conn   *net.UDPConn
	dialed bool

	mu     sync.Mutex
	closed bool
}

// ListenUDP opens a server-side transport bound to address.
func ListenUDP(address string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %v: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %v: %w", address, err)
	}
	return &UDPTransport{conn: conn}, nil
}

// DialUDP opens a client-side transport towards address.
func DialUDP(address string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %v: %w", address, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", address, err)
	}
	return &UDPTransport{conn: conn, dialed: true}, nil
}

// Start launches the read loop. It returns immediately; receive is invoked
// from the loop goroutine until Close.
func (t *UDPTransport) Start(receive func(data []byte, addr net.Addr)) error {
	go t.readLoop(receive)
	return nil
}

func (t *UDPTransport) readLoop(receive func(data []byte, addr net.Addr)) {
	remote := t.conn.RemoteAddr()
	for {
		var buf [PacketSize]byte
		n, addr, err := t.conn.ReadFromUDP(buf[:])
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				log.WithError(err).Warn("Could not read UDP datagram")
			}
			return
		}
		if t.dialed {
			// ReadFromUDP on a dialed socket reports a nil source on some
			// platforms; the remote is fixed anyway.
			receive(buf[:n], remote)
		} else {
			receive(buf[:n], addr)
		}
	}
}

func (t *UDPTransport) Send(data []byte, addr net.Addr) error {
	if t.dialed {
		_, err := t.conn.Write(data)
		return err
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("send to non-UDP address %v", addr)
	}
	_, err := t.conn.WriteToUDP(data, udpAddr)
	return err
}

func (t *UDPTransport) Addr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *UDPTransport) RemoteAddr() net.Addr {
	if !t.dialed {
		return nil
	}
	return t.conn.RemoteAddr()
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
