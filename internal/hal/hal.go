// Package hal defines the hardware surface the bridge core needs from the
// board: two snooped synchronous channels, the full-duplex link used while
// injecting, and three level signals.
//
// Pin muxing, clocks and the bus-select multiplexer program live behind
// these interfaces; the core only asks "is a byte there", "exchange a byte",
// "claim" and "release".
package hal

// Channel is one receive-only synchronous channel.
type Channel interface {
	// Readable reports whether a received byte is waiting.
	Readable() bool

	// ReadByte returns the waiting byte and clears it (clear-on-read).
	// Only meaningful after Readable returned true.
	ReadByte() byte
}

// Link is the full-duplex synchronous channel the injector drives.
type Link interface {
	Channel

	// Exchange clocks tx out and returns the byte clocked in at the same time.
	Exchange(tx byte) byte
}

// Line is an input level signal.
type Line interface {
	Get() bool
}

// Output is an output level signal.
type Output interface {
	Set(high bool)
}

// Arbiter switches the bus-select lines.
// Claim and Release are atomic side effects from the core's point of view.
type Arbiter interface {
	Claim()
	Release()
}

// Bus groups everything the bus loop touches.
type Bus struct {
	// Upstream carries the master's requests.
	Upstream Channel
	// Downstream carries the device's replies.
	Downstream Channel

	// Link is used for injection while the arbiter is claimed.
	Link Link

	// Ready is the downstream device's ready level (high = ready).
	Ready Line
	// Attention is the request-attention output, asserted low.
	Attention Output
	// Arbiter claims exclusive transmit ownership.
	Arbiter Arbiter
}

// FlushCount is the number of reads used to empty receive FIFOs at startup.
const FlushCount = 16

// Flush discards whatever the snoop channels hold from before startup.
func (b Bus) Flush() {
	for i := 0; i < FlushCount; i++ {
		if b.Upstream.Readable() {
			b.Upstream.ReadByte()
		}
		if b.Downstream.Readable() {
			b.Downstream.ReadByte()
		}
	}
}
