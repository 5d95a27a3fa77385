// internal/status/encode.go
package status

import (
	"fmt"
	"io"
)

// Encode converts a Snapshot into a full status block.
// Layout is protocol-locked. Reserved and device name slots are left zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health()
	regs[SlotFaultBits] = uint16(s.Faults)

	regs[SlotInterceptWrite] = uint16(s.Intercept.Write)
	regs[SlotInterceptRead] = uint16(s.Intercept.Read)
	regs[SlotRequestWrite] = uint16(s.Request.Write)
	regs[SlotRequestRead] = uint16(s.Request.Read)
	regs[SlotResponseWrite] = uint16(s.Response.Write)
	regs[SlotResponseRead] = uint16(s.Response.Read)

	regs[SlotFlags] = s.Flags

	return regs
}

// Dump writes the human readable status report printed by the console.
func Dump(w io.Writer, s Snapshot) {
	fmt.Fprintf(w, "faults:    0x%04x (%s)\n", uint32(s.Faults), s.Faults)
	fmt.Fprintf(w, "intercept: wr=%d rd=%d pending=%d\n", s.Intercept.Write, s.Intercept.Read, s.Intercept.Pending())
	fmt.Fprintf(w, "request:   wr=%d rd=%d pending=%d\n", s.Request.Write, s.Request.Read, s.Request.Pending())
	fmt.Fprintf(w, "response:  wr=%d rd=%d pending=%d\n", s.Response.Write, s.Response.Read, s.Response.Pending())
	fmt.Fprintf(w, "flags:     verbose-bus=%t verbose-host=%t dedup=%t quiet-requests=%t route-to-host=%t\n",
		s.Flags&FlagVerboseBus != 0,
		s.Flags&FlagVerboseHost != 0,
		s.Flags&FlagDedupStatus != 0,
		s.Flags&FlagQuietRequests != 0,
		s.Flags&FlagRouteToHost != 0,
	)
}
