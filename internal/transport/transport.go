// internal/transport/transport.go
package transport

import "sync"

// Transport is the host side of the bridge: a byte stream carrying SysEx
// frames. Both calls are non-blocking.
type Transport interface {
	// Read copies available inbound bytes into p and returns the count.
	Read(p []byte) int
	// Write accepts up to len(p) outbound bytes and returns how many
	// were taken. Fewer than len(p) means the caller retries the rest.
	Write(p []byte) int
}

// Buffer is an in-memory Transport.
// Inbound bytes are queued with Feed; outbound bytes collect in Written.
type Buffer struct {
	mu sync.Mutex

	in  []byte
	out []byte

	// WriteLimit caps the bytes accepted per Write call. Zero is unlimited.
	WriteLimit int
	// Capacity caps the total unconsumed outbound bytes. Zero is unlimited.
	Capacity int
}

func (b *Buffer) Read(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(p, b.in)
	b.in = b.in[n:]
	return n
}

func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if b.WriteLimit > 0 && n > b.WriteLimit {
		n = b.WriteLimit
	}
	if b.Capacity > 0 {
		if room := b.Capacity - len(b.out); n > room {
			n = room
		}
	}
	if n <= 0 {
		return 0
	}
	b.out = append(b.out, p[:n]...)
	return n
}

// Feed queues inbound bytes.
func (b *Buffer) Feed(p ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.in = append(b.in, p...)
}

// Pending returns the number of inbound bytes not read yet.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.in)
}

// Written returns and consumes everything written so far.
func (b *Buffer) Written() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.out
	b.out = nil
	return out
}
