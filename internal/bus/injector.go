// internal/bus/injector.go
package bus

import (
	"time"

	"github.com/tamzrod/sysex-bridge/internal/hal"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// DefaultResponseTimeout bounds reply capture, measured from capture start.
const DefaultResponseTimeout = time.Second

// Outcome describes what one injector evaluation did.
type Outcome uint8

const (
	// Idle: preconditions not met, nothing touched.
	Idle Outcome = iota
	// NotReady: ready dropped after claiming; released, request kept.
	NotReady
	// Invalid: request not framed; never transmitted, request discarded.
	Invalid
	// TimedOut: no complete reply before the deadline; request discarded.
	TimedOut
	// Delivered: reply captured and published.
	Delivered
	// Dropped: reply captured but the response queue was full.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case NotReady:
		return "not-ready"
	case Invalid:
		return "invalid"
	case TimedOut:
		return "timeout"
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// InjectorConfig holds the injector timing.
type InjectorConfig struct {
	// ResponseTimeout is the absolute capture deadline. Zero means 1s.
	ResponseTimeout time.Duration
	// ReadyGuard is how long to wait after claiming the bus before
	// re-checking the ready line. Zero re-checks immediately.
	ReadyGuard time.Duration
}

// Injector transmits one queued host request at a time and captures the
// device reply. At most one transaction is ever in flight.
type Injector struct {
	bus   hal.Bus
	snoop *Snooper
	p     *pipeline.Pipeline
	cfg   InjectorConfig

	// injector-owned capture buffer; copied into the response queue on success
	capture sysex.Buffer

	now func() time.Time
}

// NewInjector builds an injector. The snooper gates bus quiescence.
func NewInjector(b hal.Bus, snoop *Snooper, p *pipeline.Pipeline, cfg InjectorConfig) *Injector {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	return &Injector{
		bus:   b,
		snoop: snoop,
		p:     p,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Ready reports whether every precondition for a transaction holds:
// quiescent bus, queued request, ready device.
func (in *Injector) Ready() bool {
	return in.snoop.Quiescent() && in.p.Requests.Readable() && in.bus.Ready.Get()
}

// Poll runs a transaction when the preconditions hold.
// Non-blocking unless a transaction starts; then bounded by the deadline.
func (in *Injector) Poll() Outcome {
	if !in.Ready() {
		return Idle
	}
	return in.transact()
}

func (in *Injector) transact() Outcome {
	b := in.bus
	req := in.p.Requests.Tail()

	// 1. claim, then re-check ready behind the guard
	b.Attention.Set(false)
	b.Arbiter.Claim()
	wait(in.now, in.cfg.ReadyGuard)
	if !b.Ready.Get() {
		in.release()
		return NotReady
	}

	// 2. never put an unframed request on the bus
	if !req.Valid() {
		in.p.Faults.Raise(status.FaultFraming)
		in.release()
		in.consume(req)
		return Invalid
	}

	// 3. drop stale residue, then clock the request out
	for b.Link.Readable() {
		b.Link.ReadByte()
	}
	for _, c := range req.Bytes() {
		_ = b.Link.Exchange(c) // loopback byte carries nothing
	}

	// 4. capture the reply
	ok := in.captureReply()

	// 5. release, then publish or abort
	in.release()

	if !ok {
		in.capture.Clear()
		in.consume(req)
		return TimedOut
	}

	out := Delivered
	if r := in.p.Responses; r.Writable() {
		r.Head().CopyFrom(&in.capture)
		r.Publish()
	} else {
		in.p.Faults.Raise(status.FaultResponseFull)
		out = Dropped
	}
	in.capture.Clear()
	in.consume(req)
	return out
}

// captureReply reads the link into the capture buffer until a frame
// completes or the deadline passes.
func (in *Injector) captureReply() bool {
	link := in.bus.Link
	in.capture.Clear()

	dl := newDeadline(in.now, in.cfg.ResponseTimeout)
	for {
		if dl.Expired() {
			in.p.Faults.Raise(status.FaultTimeout)
			return false
		}
		if !link.Readable() {
			continue
		}

		c := link.ReadByte()

		// known artifact: a null right after the start marker
		if c == 0x00 && in.capture.Pos() == 1 {
			in.p.Faults.Raise(status.FaultGlitch)
			continue
		}

		switch out, _ := in.capture.Append(c); out {
		case sysex.Complete:
			return true
		case sysex.Overflow:
			in.p.Faults.Raise(status.FaultOverflow)
		}
	}
}

func (in *Injector) release() {
	in.bus.Attention.Set(true)
	in.bus.Arbiter.Release()
}

func (in *Injector) consume(req *sysex.Buffer) {
	req.Clear()
	in.p.Requests.Release()
}
