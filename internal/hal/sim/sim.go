// Package sim is an in-memory implementation of the bridge HAL: two snoop
// FIFOs clocked in lockstep, level pins, an arbiter that counts claims, and
// a downstream device that answers injected requests.
//
// It backs the package tests and the "sim" bus mode of cmd/bridge.
package sim

import (
	"sync"
	"sync/atomic"

	"github.com/tamzrod/sysex-bridge/internal/hal"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// ---- channels ----

// Channel is a receive FIFO. Channels of one Bus share a lock so that a
// transaction lands on both sides at once.
type Channel struct {
	mu  *sync.Mutex
	buf []byte
}

func (c *Channel) Readable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) > 0
}

func (c *Channel) ReadByte() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return 0
	}
	b := c.buf[0]
	c.buf = c.buf[1:]
	return b
}

// Feed appends received bytes.
func (c *Channel) Feed(p ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, p...)
}

// Pending returns the number of unread bytes.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// ---- pins ----

// Pin is a level signal usable as both hal.Line and hal.Output.
type Pin struct {
	level atomic.Bool
	lows  atomic.Int32
}

// NewPin returns a pin at the given level.
func NewPin(high bool) *Pin {
	p := &Pin{}
	p.level.Store(high)
	return p
}

func (p *Pin) Get() bool { return p.level.Load() }

func (p *Pin) Set(high bool) {
	if !high {
		p.lows.Add(1)
	}
	p.level.Store(high)
}

// Lows counts how many times the pin was driven low.
func (p *Pin) Lows() int { return int(p.lows.Load()) }

// ---- arbiter ----

// Arbiter records bus ownership.
type Arbiter struct {
	claimed  atomic.Bool
	claims   atomic.Int32
	releases atomic.Int32

	// OnClaim runs after each Claim (tests use it to race the ready line).
	OnClaim func()
}

func (a *Arbiter) Claim() {
	a.claimed.Store(true)
	a.claims.Add(1)
	if a.OnClaim != nil {
		a.OnClaim()
	}
}

func (a *Arbiter) Release() {
	a.claimed.Store(false)
	a.releases.Add(1)
}

// Claimed reports current ownership.
func (a *Arbiter) Claimed() bool { return a.claimed.Load() }

// Claims returns the number of Claim calls.
func (a *Arbiter) Claims() int { return int(a.claims.Load()) }

// Releases returns the number of Release calls.
func (a *Arbiter) Releases() int { return int(a.releases.Load()) }

// ---- bus ----

// Bus bundles a complete simulated bus.
type Bus struct {
	mu sync.Mutex

	Upstream   *Channel
	Downstream *Channel
	Device     *Device

	Ready     *Pin
	Attention *Pin
	Arbiter   *Arbiter
}

// NewBus returns an idle bus with a ready device that echoes requests.
func NewBus() *Bus {
	b := &Bus{
		Ready:     NewPin(true),
		Attention: NewPin(true),
		Arbiter:   &Arbiter{},
	}
	b.Upstream = &Channel{mu: &b.mu}
	b.Downstream = &Channel{mu: &b.mu}
	b.Device = &Device{Respond: Echo}
	return b
}

// HAL exposes the bus through the hal interfaces.
func (b *Bus) HAL() hal.Bus {
	return hal.Bus{
		Upstream:   b.Upstream,
		Downstream: b.Downstream,
		Link:       b.Device,
		Ready:      b.Ready,
		Attention:  b.Attention,
		Arbiter:    b.Arbiter,
	}
}

// Transaction clocks up and down onto the snoop channels in lockstep.
// The shorter side is padded with idle zeros.
func (b *Bus) Transaction(up, down []byte) {
	n := len(up)
	if len(down) > n {
		n = len(down)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < n; i++ {
		var u, d byte
		if i < len(up) {
			u = up[i]
		}
		if i < len(down) {
			d = down[i]
		}
		b.Upstream.buf = append(b.Upstream.buf, u)
		b.Downstream.buf = append(b.Downstream.buf, d)
	}
}

// Exchange is Transaction with both frames right-aligned: the shorter side
// is led by idle zeros, so the reply's end marker is clocked together with
// the request's. A snooper publishing on the request end marker sees the
// reply complete.
func (b *Bus) Exchange(up, down []byte) {
	n := len(up)
	if len(down) > n {
		n = len(down)
	}
	b.Transaction(leftPad(up, n), leftPad(down, n))
}

func leftPad(p []byte, n int) []byte {
	if len(p) >= n {
		return p
	}
	out := make([]byte, n)
	copy(out[n-len(p):], p)
	return out
}

// ---- device ----

// Device is the downstream end of the injection link.
type Device struct {
	mu sync.Mutex

	// Respond builds the reply to a complete request; nil means no reply.
	Respond func(req []byte) []byte
	// Glitch inserts a null byte right after the reply's start marker.
	Glitch bool

	rx       []byte
	asm      sysex.Buffer
	raw      []byte
	requests [][]byte
}

func (d *Device) Readable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rx) > 0
}

func (d *Device) ReadByte() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rx) == 0 {
		return 0
	}
	b := d.rx[0]
	d.rx = d.rx[1:]
	return b
}

// Exchange receives one request byte and returns it as loopback.
func (d *Device) Exchange(tx byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.raw = append(d.raw, tx)

	out, _ := d.asm.Append(tx)
	if out != sysex.Complete {
		return tx
	}

	req := append([]byte(nil), d.asm.Bytes()...)
	d.asm.Clear()
	d.requests = append(d.requests, req)

	if d.Respond == nil {
		return tx
	}
	resp := d.Respond(req)
	if len(resp) == 0 {
		return tx
	}
	if d.Glitch && resp[0] == sysex.SOF {
		d.rx = append(d.rx, resp[0], 0x00)
		d.rx = append(d.rx, resp[1:]...)
	} else {
		d.rx = append(d.rx, resp...)
	}
	return tx
}

// Stage queues bytes on the link receive side, e.g. stale residue.
func (d *Device) Stage(p ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx = append(d.rx, p...)
}

// Raw returns every byte clocked out by the injector.
func (d *Device) Raw() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.raw...)
}

// Requests returns the complete requests received so far.
func (d *Device) Requests() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.requests))
	copy(out, d.requests)
	return out
}

// EchoTag is the second byte of every Echo reply.
const EchoTag byte = 0x7F

// Echo answers F0 7F <request payload> F7.
func Echo(req []byte) []byte {
	payload := req[1 : len(req)-1]
	if max := sysex.BufferSize - 3; len(payload) > max {
		payload = payload[:max]
	}
	resp := make([]byte, 0, len(payload)+3)
	resp = append(resp, sysex.SOF, EchoTag)
	resp = append(resp, payload...)
	return append(resp, sysex.EOF)
}
