package urmp

import (
	"net"
	"sync"
)

type memoryAddr string

func (a memoryAddr) Network() string { return "mem" }
func (a memoryAddr) String() string  { return string(a) }

// MemoryTransport is an in-process Transport for tests and embedder test
// suites. Two linked instances form a bidirectional link; delivery is
// synchronous, which keeps loss and reorder scenarios deterministic.
type MemoryTransport struct {
	addr memoryAddr
	peer *MemoryTransport

	mu      sync.Mutex
	receive func(data []byte, addr net.Addr)
	filter  func(data []byte) [][]byte
	closed  bool
}

// MemoryPair creates two linked in-memory transports. Datagrams sent on one
// side are handed to the other side's receive callback.
func MemoryPair() (*MemoryTransport, *MemoryTransport) {
	a := &MemoryTransport{addr: memoryAddr("mem-a")}
	b := &MemoryTransport{addr: memoryAddr("mem-b")}
	a.peer = b
	b.peer = a
	return a, b
}

// SetFilter installs a hook deciding what actually crosses the link for each
// datagram sent from this side. Returning nil drops the datagram, returning
// the input once passes it through, returning it twice duplicates it, and
// so on. A nil filter passes everything.
func (t *MemoryTransport) SetFilter(filter func(data []byte) [][]byte) {
	t.mu.Lock()
	t.filter = filter
	t.mu.Unlock()
}

func (t *MemoryTransport) Start(receive func(data []byte, addr net.Addr)) error {
	t.mu.Lock()
	t.receive = receive
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Send(data []byte, addr net.Addr) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return net.ErrClosed
	}
	filter := t.filter
	t.mu.Unlock()

	deliveries := [][]byte{data}
	if filter != nil {
		deliveries = filter(data)
	}
	for _, d := range deliveries {
		// Copy: the sender is free to reuse its buffer after Send returns.
		frame := make([]byte, len(d))
		copy(frame, d)
		t.peer.deliver(frame, t.addr)
	}
	return nil
}

func (t *MemoryTransport) deliver(data []byte, from net.Addr) {
	t.mu.Lock()
	receive := t.receive
	closed := t.closed
	t.mu.Unlock()
	if closed || receive == nil {
		return
	}
	receive(data, from)
}

func (t *MemoryTransport) Addr() net.Addr { return t.addr }

func (t *MemoryTransport) RemoteAddr() net.Addr { return t.peer.addr }

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
