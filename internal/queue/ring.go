// internal/queue/ring.go
package queue

import (
	"fmt"
	"sync/atomic"
)

// Ring is a bounded single-producer / single-consumer queue over a fixed
// array of slots. Slots are allocated once and reused in place: the producer
// fills the slot at Head and publishes it, the consumer drains the slot at
// Tail and releases it.
//
// Both counters are free-running; only the mask is applied when indexing.
// write-read never exceeds the depth, and unsigned subtraction keeps that
// comparison correct across uint32 wrap.
//
// Exactly one context may call the producer methods (Writable, Head,
// Publish) and exactly one context the consumer methods (Readable, Tail,
// Release). Atomic loads/stores on the counters order slot content before
// index publication in both directions.
type Ring[T any] struct {
	slots []T
	mask  uint32

	write atomic.Uint32
	read  atomic.Uint32
}

// New allocates a ring of depth slots.
// Depth must be a power of two; anything else is a programming error.
func New[T any](depth int) *Ring[T] {
	if depth <= 0 || depth&(depth-1) != 0 {
		panic(fmt.Sprintf("queue: depth %d is not a power of two", depth))
	}
	return &Ring[T]{
		slots: make([]T, depth),
		mask:  uint32(depth - 1),
	}
}

// Depth returns the number of slots.
func (r *Ring[T]) Depth() int { return len(r.slots) }

// ---- producer side ----

// Writable reports whether the slot at the write index is free.
func (r *Ring[T]) Writable() bool {
	return r.write.Load()-r.read.Load() < uint32(len(r.slots))
}

// Head returns the slot at the write index.
// Only meaningful while Writable.
func (r *Ring[T]) Head() *T {
	return &r.slots[r.write.Load()&r.mask]
}

// Publish makes the head slot visible to the consumer.
// Returns false (and publishes nothing) if the ring is full.
func (r *Ring[T]) Publish() bool {
	w := r.write.Load()
	if w-r.read.Load() >= uint32(len(r.slots)) {
		return false
	}
	r.write.Store(w + 1)
	return true
}

// ---- consumer side ----

// Readable reports whether a published slot is waiting.
func (r *Ring[T]) Readable() bool {
	return r.read.Load() != r.write.Load()
}

// Tail returns the oldest published slot.
// Only meaningful while Readable.
func (r *Ring[T]) Tail() *T {
	return &r.slots[r.read.Load()&r.mask]
}

// Release hands the tail slot back to the producer.
// Returns false if nothing was published.
func (r *Ring[T]) Release() bool {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return false
	}
	r.read.Store(rd + 1)
	return true
}

// ---- observers ----

// Len returns the number of published, unreleased slots.
func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Positions returns the raw write and read counters.
func (r *Ring[T]) Positions() (write, read uint32) {
	return r.write.Load(), r.read.Load()
}
