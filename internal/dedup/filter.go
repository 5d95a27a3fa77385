// internal/dedup/filter.go
package dedup

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// Default status reply shape.
const DefaultLength = 16

// DefaultHeader is the leading bytes of a periodic status reply.
var DefaultHeader = []byte{sysex.SOF, 0x00, 0x01}

// Shape identifies a periodic status reply: exact length, fixed header.
type Shape struct {
	Length int
	Header []byte
}

// DefaultShape returns the built-in status reply shape.
func DefaultShape() Shape {
	return Shape{Length: DefaultLength, Header: append([]byte(nil), DefaultHeader...)}
}

// Validate checks that the shape can match a frame.
func (s Shape) Validate() error {
	if s.Length < 2 || s.Length > sysex.BufferSize {
		return fmt.Errorf("dedup: length %d out of range 2..%d", s.Length, sysex.BufferSize)
	}
	if len(s.Header) == 0 {
		return errors.New("dedup: header must not be empty")
	}
	if len(s.Header) > s.Length {
		return fmt.Errorf("dedup: header (%d bytes) longer than length %d", len(s.Header), s.Length)
	}
	if s.Header[0] != sysex.SOF {
		return fmt.Errorf("dedup: header must start with 0x%02x", sysex.SOF)
	}
	return nil
}

// Filter suppresses repeats of the last status reply seen.
//
// The cache is owned by the host loop; a Filter is not safe for
// concurrent use.
type Filter struct {
	shape Shape

	cache  [sysex.BufferSize]byte
	cached bool
}

// New returns a filter for the given shape.
func New(shape Shape) (*Filter, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	shape.Header = append([]byte(nil), shape.Header...)
	return &Filter{shape: shape}, nil
}

// Matches reports whether frame has the status reply shape.
func (f *Filter) Matches(frame []byte) bool {
	return len(frame) == f.shape.Length && bytes.HasPrefix(frame, f.shape.Header)
}

// Observe returns false when frame is a status reply identical to the
// cached one. Any other frame returns true; a new status reply also
// replaces the cache.
func (f *Filter) Observe(frame []byte) bool {
	if !f.Matches(frame) {
		return true
	}

	n := f.shape.Length
	if f.cached && bytes.Equal(f.cache[:n], frame) {
		return false
	}

	copy(f.cache[:n], frame)
	f.cached = true
	return true
}

// Reset forgets the cached reply; the next status reply is surfaced.
func (f *Filter) Reset() {
	f.cached = false
}
