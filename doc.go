// Package urmp is a reliable-messaging layer on top of an unreliable,
// connectionless datagram transport such as UDP. It gives real-time
// client/server applications two send modes — best-effort and guaranteed,
// ordered-by-arrival delivery of discrete messages — plus heartbeats,
// timeouts and a clean connection lifecycle.
//
// Reliability is a classic ARQ scheme: every reliable message carries a
// 16-bit sequence id, receivers answer with the latest id plus a 32-bit ack
// bitfield over the preceding window, and senders retransmit unacknowledged
// payloads on a fixed interval until acked or failed. Duplicate and expired
// packets never reach the application.
//
// A Server or Client is driven cooperatively: the embedder calls Tick once
// per frame, and all handlers and callbacks run on that goroutine. The only
// internal concurrency boundary is the inbound queue fed by the transport's
// receive goroutine.
package urmp
