package urmp

import (
	"encoding/binary"
	"math"
	"sync"
)

// messagePool recycles message buffers so per-frame ticks do not allocate.
// After Release the pool is the only owner of a message; any further use is
// a bug in the caller.
var messagePool = sync.Pool{
	New: func() any {
		return &Message{buf: make([]byte, PacketSize)}
	},
}

// Message is a cursor-based view over a pooled, fixed-capacity byte buffer.
// The first bytes hold the wire header (1 byte for unreliable and control
// packets, 3 bytes for reliable ones); typed writes append after it and
// typed reads start after it.
type Message struct {
	header   HeaderType
	mode     SendMode
	buf      []byte
	readPos  int
	writePos int
}

// NewMessage returns a pooled message ready for application writes. The
// message id is written as the first two payload bytes and is what the
// handler registry dispatches on.
func NewMessage(mode SendMode, id uint16) *Message {
	header := HeaderUnreliable
	if mode == Reliable {
		header = HeaderReliable
	}
	m := newMessage(header)
	m.mode = mode
	// Cannot overrun: the cursor sits right after the header.
	_ = m.WriteUint16(id)
	return m
}

// newMessage prepares a pooled buffer for sending, positioned past the wire
// header for the given type.
func newMessage(header HeaderType) *Message {
	m := messagePool.Get().(*Message)
	m.header = header
	m.mode = Unreliable
	if header == HeaderReliable {
		m.mode = Reliable
	}
	m.buf[0] = byte(header)
	m.readPos = headerSize(header)
	m.writePos = headerSize(header)
	return m
}

// messageForReceiving copies a received datagram into a pooled buffer and
// positions the read cursor past the wire header.
func messageForReceiving(header HeaderType, data []byte) *Message {
	m := messagePool.Get().(*Message)
	m.header = header
	m.mode = Unreliable
	if header == HeaderReliable {
		m.mode = Reliable
	}
	n := copy(m.buf, data)
	m.readPos = headerSize(header)
	m.writePos = n
	return m
}

func headerSize(header HeaderType) int {
	if header == HeaderReliable {
		return ReliableHeaderSize
	}
	return HeaderSize
}

// Release returns the buffer to the pool. The message must not be touched
// afterwards.
func (m *Message) Release() {
	m.readPos = 0
	m.writePos = 0
	messagePool.Put(m)
}

// SendMode reports whether the message travels reliable or unreliable.
func (m *Message) SendMode() SendMode { return m.mode }

// Len returns the number of unread payload bytes.
func (m *Message) Len() int { return m.writePos - m.readPos }

// bytes returns the full wire frame written so far. The slice aliases the
// pooled buffer and is only valid until Release.
func (m *Message) bytes() []byte { return m.buf[:m.writePos] }

func (m *Message) checkWrite(width int) error {
	if m.writePos+width > len(m.buf) {
		return ErrBufferOverrun
	}
	return nil
}

func (m *Message) checkRead(width int) error {
	if m.readPos+width > m.writePos {
		return ErrBufferUnderrun
	}
	return nil
}

func (m *Message) WriteByte(v byte) error {
	if err := m.checkWrite(1); err != nil {
		return err
	}
	m.buf[m.writePos] = v
	m.writePos++
	return nil
}

func (m *Message) WriteBool(v bool) error {
	var b byte
	if v {
		b = 1
	}
	return m.WriteByte(b)
}

func (m *Message) WriteUint16(v uint16) error {
	if err := m.checkWrite(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[m.writePos:], v)
	m.writePos += 2
	return nil
}

func (m *Message) WriteUint32(v uint32) error {
	if err := m.checkWrite(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[m.writePos:], v)
	m.writePos += 4
	return nil
}

func (m *Message) WriteUint64(v uint64) error {
	if err := m.checkWrite(8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[m.writePos:], v)
	m.writePos += 8
	return nil
}

func (m *Message) WriteInt32(v int32) error { return m.WriteUint32(uint32(v)) }

func (m *Message) WriteInt64(v int64) error { return m.WriteUint64(uint64(v)) }

func (m *Message) WriteFloat32(v float32) error {
	return m.WriteUint32(math.Float32bits(v))
}

func (m *Message) WriteFloat64(v float64) error {
	return m.WriteUint64(math.Float64bits(v))
}

// WriteBytes writes a length-prefixed byte slice.
func (m *Message) WriteBytes(v []byte) error {
	if err := m.checkWrite(2 + len(v)); err != nil {
		return err
	}
	_ = m.WriteUint16(uint16(len(v)))
	copy(m.buf[m.writePos:], v)
	m.writePos += len(v)
	return nil
}

// WriteString writes a length-prefixed UTF-8 string.
func (m *Message) WriteString(v string) error {
	if err := m.checkWrite(2 + len(v)); err != nil {
		return err
	}
	_ = m.WriteUint16(uint16(len(v)))
	copy(m.buf[m.writePos:], v)
	m.writePos += len(v)
	return nil
}

func (m *Message) ReadByte() (byte, error) {
	if err := m.checkRead(1); err != nil {
		return 0, err
	}
	v := m.buf[m.readPos]
	m.readPos++
	return v, nil
}

func (m *Message) ReadBool() (bool, error) {
	v, err := m.ReadByte()
	return v != 0, err
}

func (m *Message) ReadUint16() (uint16, error) {
	if err := m.checkRead(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(m.buf[m.readPos:])
	m.readPos += 2
	return v, nil
}

func (m *Message) ReadUint32() (uint32, error) {
	if err := m.checkRead(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(m.buf[m.readPos:])
	m.readPos += 4
	return v, nil
}

func (m *Message) ReadUint64() (uint64, error) {
	if err := m.checkRead(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(m.buf[m.readPos:])
	m.readPos += 8
	return v, nil
}

func (m *Message) ReadInt32() (int32, error) {
	v, err := m.ReadUint32()
	return int32(v), err
}

func (m *Message) ReadInt64() (int64, error) {
	v, err := m.ReadUint64()
	return int64(v), err
}

func (m *Message) ReadFloat32() (float32, error) {
	v, err := m.ReadUint32()
	return math.Float32frombits(v), err
}

func (m *Message) ReadFloat64() (float64, error) {
	v, err := m.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBytes reads a length-prefixed byte slice. The result is a copy and
// stays valid after Release.
func (m *Message) ReadBytes() ([]byte, error) {
	n, err := m.ReadUint16()
	if err != nil {
		return nil, err
	}
	if err := m.checkRead(int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, m.buf[m.readPos:])
	m.readPos += int(n)
	return v, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (m *Message) ReadString() (string, error) {
	v, err := m.ReadBytes()
	return string(v), err
}

// ReadRemaining returns a copy of every unread payload byte.
func (m *Message) ReadRemaining() []byte {
	v := make([]byte, m.writePos-m.readPos)
	copy(v, m.buf[m.readPos:m.writePos])
	m.readPos = m.writePos
	return v
}
