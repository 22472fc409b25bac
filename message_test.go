package urmp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMessageRoundTrip(t *testing.T) {
	type values struct {
		B    byte
		Flag bool
		U16  uint16
		U32  uint32
		U64  uint64
		I32  int32
		I64  int64
		F32  float32
		F64  float64
		Str  string
		Blob []byte
	}

	want := values{
		B:    0xab,
		Flag: true,
		U16:  65535,
		U32:  1 << 30,
		U64:  1 << 62,
		I32:  -12345,
		I64:  -1 << 40,
		F32:  3.5,
		F64:  -0.25,
		Str:  "hello urmp",
		Blob: []byte{1, 2, 3, 0, 255},
	}

	m := NewMessage(Reliable, 7)
	if err := m.WriteByte(want.B); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteBool(want.Flag); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteUint16(want.U16); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteUint32(want.U32); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteUint64(want.U64); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteInt32(want.I32); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteInt64(want.I64); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFloat32(want.F32); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFloat64(want.F64); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteString(want.Str); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteBytes(want.Blob); err != nil {
		t.Fatal(err)
	}

	// Decode the frame exactly as the peer would on receive.
	r := messageForReceiving(HeaderReliable, m.bytes())
	defer r.Release()
	defer m.Release()

	id, err := r.ReadUint16()
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Fatalf("message id = %v, want 7", id)
	}

	var got values
	got.B, _ = r.ReadByte()
	got.Flag, _ = r.ReadBool()
	got.U16, _ = r.ReadUint16()
	got.U32, _ = r.ReadUint32()
	got.U64, _ = r.ReadUint64()
	got.I32, _ = r.ReadInt32()
	got.I64, _ = r.ReadInt64()
	got.F32, _ = r.ReadFloat32()
	got.F64, _ = r.ReadFloat64()
	got.Str, _ = r.ReadString()
	got.Blob, err = r.ReadBytes()
	if err != nil {
		t.Fatal(err)
	}

	if !cmp.Equal(got, want) {
		t.Error(cmp.Diff(want, got))
	}
	if r.Len() != 0 {
		t.Errorf("%d unread bytes left", r.Len())
	}
}

func TestMessageOverrun(t *testing.T) {
	m := NewMessage(Unreliable, 1)
	defer m.Release()

	if err := m.WriteBytes(make([]byte, PacketSize)); !errors.Is(err, ErrBufferOverrun) {
		t.Fatalf("err = %v, want ErrBufferOverrun", err)
	}

	// Fill the buffer to the brim, then one more byte must fail.
	if err := m.WriteBytes(make([]byte, PacketSize-m.writePos-2)); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteByte(0); !errors.Is(err, ErrBufferOverrun) {
		t.Fatalf("err = %v, want ErrBufferOverrun", err)
	}
}

func TestMessageUnderrun(t *testing.T) {
	m := NewMessage(Unreliable, 1)
	defer m.Release()
	_ = m.WriteByte(1)

	r := messageForReceiving(HeaderUnreliable, m.bytes())
	defer r.Release()

	if _, err := r.ReadUint16(); err != nil { // message id
		t.Fatal(err)
	}
	if _, err := r.ReadByte(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadByte(); !errors.Is(err, ErrBufferUnderrun) {
		t.Fatalf("err = %v, want ErrBufferUnderrun", err)
	}
	if _, err := r.ReadUint64(); !errors.Is(err, ErrBufferUnderrun) {
		t.Fatalf("err = %v, want ErrBufferUnderrun", err)
	}
}

func TestMessageHeaderLayout(t *testing.T) {
	reliable := NewMessage(Reliable, 513)
	defer reliable.Release()
	frame := reliable.bytes()
	if HeaderType(frame[0]) != HeaderReliable {
		t.Errorf("header byte = %v", frame[0])
	}
	if len(frame) != ReliableHeaderSize+2 {
		t.Errorf("frame length = %d, want %d", len(frame), ReliableHeaderSize+2)
	}

	unreliable := NewMessage(Unreliable, 513)
	defer unreliable.Release()
	frame = unreliable.bytes()
	if HeaderType(frame[0]) != HeaderUnreliable {
		t.Errorf("header byte = %v", frame[0])
	}
	if len(frame) != HeaderSize+2 {
		t.Errorf("frame length = %d, want %d", len(frame), HeaderSize+2)
	}
}
