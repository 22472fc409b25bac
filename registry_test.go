package urmp

import (
	"errors"
	"testing"
)

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	r := newRegistry()

	if _, err := r.Register(1, func(*Message, *Connection) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(1, func(*Message, *Connection) {}); !errors.Is(err, ErrDuplicateHandler) {
		t.Fatalf("err = %v, want ErrDuplicateHandler", err)
	}
}

func TestRegistryRemoveFreesID(t *testing.T) {
	r := newRegistry()

	reg, err := r.Register(1, func(*Message, *Connection) {})
	if err != nil {
		t.Fatal(err)
	}
	reg.Remove()
	reg.Remove() // idempotent

	if _, err := r.Register(1, func(*Message, *Connection) {}); err != nil {
		t.Fatalf("re-register after Remove failed: %v", err)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := newRegistry()

	var got uint32
	if _, err := r.Register(42, func(m *Message, _ *Connection) {
		got, _ = m.ReadUint32()
	}); err != nil {
		t.Fatal(err)
	}

	m := NewMessage(Reliable, 42)
	_ = m.WriteUint32(99)
	recv := messageForReceiving(HeaderReliable, m.bytes())
	m.Release()
	defer recv.Release()

	p := newPeer(NewDefaultOptions())
	c := newConnection(p, memoryAddr("test"), stateConnected)
	r.dispatch(recv, c)

	if got != 99 {
		t.Fatalf("handler got %d, want 99", got)
	}
}
