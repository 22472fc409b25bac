package urmp

// PacketSize is the fixed capacity of every pooled message buffer and the
// largest datagram the peer will ever send or accept.
const PacketSize = 1250

const (
	// HeaderSize is the plain header: Type(1).
	HeaderSize int = 1
	// ReliableHeaderSize is the reliable header: Type(1) + SequenceID(2).
	ReliableHeaderSize int = 1 + 2
	// AckPacketSize is the full size of an ack packet:
	// Type(1) + LatestSequenceID(2) + AckBitfield(4).
	AckPacketSize int = 1 + 2 + 4
)

// MaxPayloadSize is the usable payload of a reliable message.
const MaxPayloadSize = PacketSize - ReliableHeaderSize

// AckWindowSize is the width of the acknowledgment bitfield. Both ends must
// agree on it; it is part of the wire contract, together with the fixed
// resend interval.
const AckWindowSize = 32

// HeaderType is the first byte of every datagram.
type HeaderType uint8

const (
	HeaderUnreliable HeaderType = iota
	HeaderReliable
	HeaderAck
	HeaderConnect
	HeaderConnectAccept
	HeaderHeartbeat
	HeaderHeartbeatAck
	HeaderDisconnect
)

func (t HeaderType) String() string {
	switch t {
	case HeaderUnreliable:
		return "unreliable"
	case HeaderReliable:
		return "reliable"
	case HeaderAck:
		return "ack"
	case HeaderConnect:
		return "connect"
	case HeaderConnectAccept:
		return "connectAccept"
	case HeaderHeartbeat:
		return "heartbeat"
	case HeaderHeartbeatAck:
		return "heartbeatAck"
	case HeaderDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// SendMode selects between best-effort and guaranteed delivery.
type SendMode uint8

const (
	Unreliable SendMode = iota
	Reliable
)

// DisconnectReason explains why a connection was torn down. The string forms
// are stable constants meant for the embedder's logs.
type DisconnectReason uint8

const (
	ReasonNeverConnected DisconnectReason = iota
	ReasonTransportError
	ReasonTimedOut
	ReasonKicked
	ReasonServerStopped
	ReasonDisconnected
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNeverConnected:
		return "never connected"
	case ReasonTransportError:
		return "transport error"
	case ReasonTimedOut:
		return "timed out"
	case ReasonKicked:
		return "kicked"
	case ReasonServerStopped:
		return "server stopped"
	case ReasonDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
