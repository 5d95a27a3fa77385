// internal/bus/snooper.go
package bus

import (
	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/hal"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// Snooper passively captures both bus channels into the intercept queue.
//
// A slot is published only when the upstream frame completes; the
// downstream buffer of the same slot is the paired reply when complete.
// When the intercept queue has no free slot the bytes go to a private
// scratch pair instead: framing is still tracked, the transaction is
// dropped when its upstream frame completes, and FaultInterceptFull is
// raised. The bus is never blocked.
type Snooper struct {
	up   hal.Channel
	down hal.Channel
	p    *pipeline.Pipeline

	scratch  pipeline.Pair
	dropping bool

	// replies already mirrored; owned by the bus context
	mirrored *dedup.Filter
}

// NewSnooper wires the two snoop channels to the pipeline.
func NewSnooper(up, down hal.Channel, p *pipeline.Pipeline) *Snooper {
	return &Snooper{up: up, down: down, p: p}
}

// SetMirrorFilter makes route-to-host skip repeated status replies while
// dedup is on. f must not be shared with the host loop.
func (s *Snooper) SetMirrorFilter(f *dedup.Filter) { s.mirrored = f }

// Poll samples whichever channel has a byte and feeds its assembler.
// Non-blocking.
func (s *Snooper) Poll() {
	a0 := s.up.Readable()
	a1 := s.down.Readable()
	if !a0 && !a1 {
		return
	}

	pair := s.pair()

	// downstream first: a reply completing on the same clock as the
	// request is part of this slot when it is published
	if a1 {
		if out, _ := pair.Downstream.Append(s.down.ReadByte()); out == sysex.Overflow {
			s.p.Faults.Raise(status.FaultOverflow)
		}
	}

	if a0 {
		switch out, _ := pair.Upstream.Append(s.up.ReadByte()); out {
		case sysex.Complete:
			s.publish(pair)
		case sysex.Overflow:
			s.p.Faults.Raise(status.FaultOverflow)
		}
	}
}

// Quiescent reports whether neither channel is mid-frame.
// The injector only claims the bus while this holds.
func (s *Snooper) Quiescent() bool {
	return !s.current().Filling()
}

// Dropping reports whether the snooper is capturing into scratch.
func (s *Snooper) Dropping() bool { return s.dropping }

// current returns the pair bytes would go to, without changing mode.
func (s *Snooper) current() *pipeline.Pair {
	if s.dropping || !s.p.Intercept.Writable() {
		return &s.scratch
	}
	return s.p.Intercept.Head()
}

// pair selects the pair for this cycle. Scratch mode is entered when the
// queue is full and left only on a frame boundary of both channels.
func (s *Snooper) pair() *pipeline.Pair {
	writable := s.p.Intercept.Writable()

	if s.dropping {
		if writable && !s.scratch.Filling() {
			s.dropping = false
			s.scratch.Clear()
			return s.p.Intercept.Head()
		}
		return &s.scratch
	}

	if writable {
		return s.p.Intercept.Head()
	}

	s.dropping = true
	s.scratch.Clear()
	return &s.scratch
}

func (s *Snooper) publish(pair *pipeline.Pair) {
	if pair == &s.scratch {
		s.p.Faults.Raise(status.FaultInterceptFull)
		s.scratch.Clear()
		return
	}

	settings := s.p.Settings
	reply := pair.Downstream.Complete()

	fresh := true
	if reply && s.mirrored != nil {
		// observed even when not mirroring so the cache tracks the bus
		fresh = s.mirrored.Observe(pair.Downstream.Bytes()) || !settings.Get(pipeline.DedupStatus)
	}

	if settings.Get(pipeline.RouteToHost) {
		if !settings.Get(pipeline.QuietRequests) {
			s.mirror(&pair.Upstream)
		}
		if reply && fresh {
			s.mirror(&pair.Downstream)
		}
	}

	s.p.Intercept.Publish()
}

// mirror copies a completed frame into the response queue for the host.
func (s *Snooper) mirror(frame *sysex.Buffer) {
	r := s.p.Responses
	if !r.Writable() {
		s.p.Faults.Raise(status.FaultResponseFull)
		return
	}
	r.Head().CopyFrom(frame)
	r.Publish()
}
