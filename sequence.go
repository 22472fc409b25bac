package urmp

import "github.com/kelindar/bitmap"

// sequenceDelta computes the wraparound-aware distance from b to a. A
// positive result means a is newer than b, even across the 2^16 boundary.
func sequenceDelta(a, b uint16) int {
	return int(int16(a - b))
}

// sequenceNewer reports whether a is strictly newer than b.
func sequenceNewer(a, b uint16) bool {
	return sequenceDelta(a, b) > 0
}

// receiveWindow tracks which of the most recent reliable sequence ids have
// been received. Bit i of the bitmap means "latest-i was received"; index 0
// (latest itself) is implicit and always set. Ids older than AckWindowSize
// fall off the window and are treated as duplicates.
type receiveWindow struct {
	latest  uint16
	bits    bitmap.Bitmap
	scratch bitmap.Bitmap
}

// handle records a received sequence id and reports whether it is new. A
// duplicate or an id older than the window is not new and must not reach
// the application.
func (w *receiveWindow) handle(seq uint16) bool {
	delta := sequenceDelta(seq, w.latest)
	switch {
	case delta > 0:
		w.advance(uint32(delta))
		w.latest = seq
		return true
	case delta == 0:
		return false
	default:
		offset := uint32(-delta)
		if offset > AckWindowSize {
			// Too far in the past to track. Expired, counts as duplicate.
			return false
		}
		if w.bits.Contains(offset) {
			return false
		}
		w.bits.Set(offset)
		return true
	}
}

// advance shifts every tracked id further into the past by delta and slots
// the previous latest into the window.
func (w *receiveWindow) advance(delta uint32) {
	w.scratch.Clear()
	w.bits.Range(func(x uint32) {
		if x+delta <= AckWindowSize {
			w.scratch.Set(x + delta)
		}
	})
	if delta <= AckWindowSize {
		w.scratch.Set(delta)
	}
	w.bits, w.scratch = w.scratch, w.bits
}

// ackBits renders the window as the wire bitfield: bit i set means
// latest-(i+1) was received.
func (w *receiveWindow) ackBits() uint32 {
	var out uint32
	w.bits.Range(func(x uint32) {
		if x >= 1 && x <= AckWindowSize {
			out |= 1 << (x - 1)
		}
	})
	return out
}
