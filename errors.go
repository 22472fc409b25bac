package urmp

import "errors"

var (
	// ErrBufferUnderrun is returned when a read would cross the end of a
	// message. It signals a framing bug, never a recoverable condition.
	ErrBufferUnderrun = errors.New("message buffer underrun")

	// ErrBufferOverrun is returned when a write would cross the fixed
	// capacity of a message buffer.
	ErrBufferOverrun = errors.New("message buffer overrun")

	// ErrDuplicateHandler is returned when a message id is registered twice.
	ErrDuplicateHandler = errors.New("duplicate handler registration")

	// ErrNotConnected is returned when sending on a connection that is not
	// in the connected state.
	ErrNotConnected = errors.New("connection is not connected")

	// ErrPeerStopped is returned when an operation requires a running peer.
	ErrPeerStopped = errors.New("peer is stopped")
)
