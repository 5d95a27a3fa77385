// internal/status/register.go
package status

import (
	"strings"
	"sync/atomic"
)

// Fault is one sticky bit in the error register.
type Fault uint32

// Fault kinds. All are non-fatal and only cause a local abort or reset.
const (
	// FaultFraming: request or response frame missing a start or end marker.
	FaultFraming Fault = 1 << iota
	// FaultOverflow: frame exceeded the buffer capacity before its terminator.
	FaultOverflow
	// FaultTimeout: no complete reply captured before the deadline.
	FaultTimeout
	// FaultGlitch: spurious null byte right after the start marker of a reply.
	FaultGlitch
	// FaultInterceptFull: intercept queue full, one bus transaction dropped.
	FaultInterceptFull
	// FaultRequestFull: request queue full, host request dropped.
	FaultRequestFull
	// FaultResponseFull: response queue full, reply or mirror dropped.
	FaultResponseFull
)

var faultNames = []struct {
	f    Fault
	name string
}{
	{FaultFraming, "framing"},
	{FaultOverflow, "overflow"},
	{FaultTimeout, "timeout"},
	{FaultGlitch, "glitch"},
	{FaultInterceptFull, "intercept-full"},
	{FaultRequestFull, "request-full"},
	{FaultResponseFull, "response-full"},
}

// Faults lists every fault kind in bit order.
func Faults() []Fault {
	out := make([]Fault, 0, len(faultNames))
	for _, fn := range faultNames {
		out = append(out, fn.f)
	}
	return out
}

// Name returns the name of a single fault bit.
func (f Fault) Name() string {
	for _, fn := range faultNames {
		if fn.f == f {
			return fn.name
		}
	}
	return "unknown"
}

// String lists the set bits, "none" when clear.
func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range faultNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	if rest := f &^ allFaults(); rest != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, ",")
}

func allFaults() Fault {
	var all Fault
	for _, fn := range faultNames {
		all |= fn.f
	}
	return all
}

// Register is the sticky fault bitmask shared by both loops.
// Raise never blocks; bits are cleared only by Clear.
type Register struct {
	bits atomic.Uint32
}

// Raise ORs f into the register.
func (r *Register) Raise(f Fault) {
	r.bits.Or(uint32(f))
}

// Load returns the current bits.
func (r *Register) Load() Fault {
	return Fault(r.bits.Load())
}

// Has reports whether every bit of f is set.
func (r *Register) Has(f Fault) bool {
	return r.Load()&f == f
}

// Clear resets the register and returns the bits it held.
func (r *Register) Clear() Fault {
	return Fault(r.bits.Swap(0))
}
