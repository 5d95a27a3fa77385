// internal/pipeline/settings.go
package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/tamzrod/sysex-bridge/internal/status"
)

// Flag identifies one console toggle.
type Flag uint8

const (
	VerboseBus Flag = iota
	VerboseHost
	DedupStatus
	QuietRequests
	RouteToHost

	numFlags
)

var flagNames = [numFlags]string{
	VerboseBus:    "verbose-bus",
	VerboseHost:   "verbose-host",
	DedupStatus:   "dedup",
	QuietRequests: "quiet-requests",
	RouteToHost:   "route-to-host",
}

var flagBits = [numFlags]uint16{
	VerboseBus:    status.FlagVerboseBus,
	VerboseHost:   status.FlagVerboseHost,
	DedupStatus:   status.FlagDedupStatus,
	QuietRequests: status.FlagQuietRequests,
	RouteToHost:   status.FlagRouteToHost,
}

func (f Flag) String() string {
	if f < numFlags {
		return flagNames[f]
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// ParseFlag maps a flag name to its Flag.
func ParseFlag(name string) (Flag, error) {
	for i, n := range flagNames {
		if n == name {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("pipeline: unknown flag %q", name)
}

// AllFlags lists every flag.
func AllFlags() []Flag {
	out := make([]Flag, numFlags)
	for i := range out {
		out[i] = Flag(i)
	}
	return out
}

// Flags is the plain-value form of Settings, used for defaults and config.
type Flags struct {
	VerboseBus    bool
	VerboseHost   bool
	DedupStatus   bool
	QuietRequests bool
	RouteToHost   bool
}

// DefaultFlags are the power-up values.
func DefaultFlags() Flags {
	return Flags{
		VerboseBus:  true,
		VerboseHost: true,
		DedupStatus: true,
	}
}

// Settings are the runtime toggles. Read by both loops, written by the console.
type Settings struct {
	v [numFlags]atomic.Bool
}

// NewSettings seeds the toggles.
func NewSettings(f Flags) *Settings {
	s := &Settings{}
	s.v[VerboseBus].Store(f.VerboseBus)
	s.v[VerboseHost].Store(f.VerboseHost)
	s.v[DedupStatus].Store(f.DedupStatus)
	s.v[QuietRequests].Store(f.QuietRequests)
	s.v[RouteToHost].Store(f.RouteToHost)
	return s
}

// Get returns one flag.
func (s *Settings) Get(f Flag) bool { return s.v[f].Load() }

// Set stores one flag.
func (s *Settings) Set(f Flag, on bool) { s.v[f].Store(on) }

// Toggle flips one flag and returns the new value.
func (s *Settings) Toggle(f Flag) bool {
	for {
		old := s.v[f].Load()
		if s.v[f].CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Bits packs the flags into the status block representation.
func (s *Settings) Bits() uint16 {
	var bits uint16
	for i := range s.v {
		if s.v[i].Load() {
			bits |= flagBits[i]
		}
	}
	return bits
}
