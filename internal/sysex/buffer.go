// internal/sysex/buffer.go
package sysex

// Frame markers and geometry.
// These values define the bus wire format and MUST NOT be configurable.
const (
	SOF byte = 0xF0
	EOF byte = 0xF7

	// BufferSize is the maximum frame length, markers included.
	BufferSize = 128
)

// Outcome is the result of feeding one byte to a Buffer.
type Outcome uint8

const (
	// Ignored: idle noise (not a start marker while idle). Dropped silently.
	Ignored Outcome = iota
	// InProgress: byte accepted, frame not complete yet.
	InProgress
	// Complete: byte was the terminator. The frame is pending drain.
	Complete
	// Overflow: capacity reached without a terminator. Buffer reset, byte dropped.
	Overflow
	// Rejected: a complete frame is still pending drain. Byte dropped.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case InProgress:
		return "in-progress"
	case Complete:
		return "complete"
	case Overflow:
		return "overflow"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Buffer is a fixed-capacity SysEx frame buffer with its own assembler state.
//
// fill   > 0 while a frame is being accumulated (length == 0).
// length > 0 exactly when a complete frame occupies the buffer.
// Both zero means idle.
//
// A Buffer is owned by exactly one queue slot (or one loop) at a time.
type Buffer struct {
	buf    [BufferSize]byte
	fill   int
	length int
}

// Append feeds one byte.
// The returned length is non-zero only for Complete.
func (b *Buffer) Append(c byte) (Outcome, int) {
	if b.length != 0 {
		return Rejected, 0
	}

	if c == SOF {
		// restart: any partial frame is discarded
		b.buf[0] = c
		b.fill = 1
		return InProgress, 0
	}

	if b.fill == 0 {
		return Ignored, 0
	}

	b.buf[b.fill] = c
	b.fill++

	if c == EOF {
		b.length = b.fill
		b.fill = 0
		return Complete, b.length
	}

	if b.fill >= BufferSize {
		b.fill = 0
		return Overflow, 0
	}

	return InProgress, 0
}

// Clear resets the buffer to idle.
// Consumers call it only after the complete frame has been drained.
func (b *Buffer) Clear() {
	b.fill = 0
	b.length = 0
}

// Empty reports whether both cursors are zero.
func (b *Buffer) Empty() bool { return b.fill == 0 && b.length == 0 }

// Filling reports whether a frame is mid-accumulation.
func (b *Buffer) Filling() bool { return b.fill != 0 }

// Complete reports whether a complete frame is pending drain.
func (b *Buffer) Complete() bool { return b.length != 0 }

// Len returns the complete frame length, 0 if none.
func (b *Buffer) Len() int { return b.length }

// Pos returns the accumulation position, 0 when not filling.
func (b *Buffer) Pos() int { return b.fill }

// Bytes returns the complete frame, nil if none.
// The slice aliases the buffer and is valid until Clear.
func (b *Buffer) Bytes() []byte {
	if b.length == 0 {
		return nil
	}
	return b.buf[:b.length]
}

// Load stores p as a complete frame without validating markers.
// p is truncated to BufferSize. Callers check Valid before use on the bus.
func (b *Buffer) Load(p []byte) {
	n := copy(b.buf[:], p)
	b.fill = 0
	b.length = n
}

// CopyFrom replaces the contents with src's complete frame.
func (b *Buffer) CopyFrom(src *Buffer) {
	b.Load(src.Bytes())
}

// Valid reports whether the complete frame starts with SOF and ends with EOF.
func (b *Buffer) Valid() bool {
	return Valid(b.Bytes())
}

// Valid reports whether frame is delimited by SOF and EOF.
func Valid(frame []byte) bool {
	if len(frame) < 2 || len(frame) > BufferSize {
		return false
	}
	return frame[0] == SOF && frame[len(frame)-1] == EOF
}
