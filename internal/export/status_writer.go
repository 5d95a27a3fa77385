// internal/export/status_writer.go
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/sysex-bridge/internal/status"
)

// StatusWriter delivers status snapshots into a holding register block.
//
// The first write (and the first after any failure) re-asserts the full
// block including the device name; later writes only touch registers whose
// value changed, one request per contiguous run.
type StatusWriter struct {
	cli      Client
	unitID   uint8
	baseSlot uint16

	needFull bool
	last     []uint16
	nameRegs []uint16
}

// NewStatusWriter builds a writer for the block at baseSlot.
func NewStatusWriter(cli Client, unitID uint8, baseSlot uint16, deviceName string) *StatusWriter {
	return &StatusWriter{
		cli:      cli,
		unitID:   unitID,
		baseSlot: baseSlot,
		needFull: true,
		nameRegs: encodeDeviceNameRegs(deviceName),
	}
}

// WriteStatus delivers one snapshot.
// On any write failure, the next successful call will re-assert the full block.
func (sw *StatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.cli == nil {
		return errors.New("status writer: disabled")
	}

	regs := sw.fullBlockRegs(s)
	base := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.unitID, base, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = regs
		return nil
	}

	// ------------------------------------------------------------
	// Changed runs only (device name is never rewritten here)
	// ------------------------------------------------------------
	var errs []string

	for start := 0; start < status.SlotDeviceNameStart; {
		if regs[start] == sw.last[start] {
			start++
			continue
		}
		end := start + 1
		for end < status.SlotDeviceNameStart && regs[end] != sw.last[end] {
			end++
		}

		if err := sw.cli.WriteRegisters(sw.unitID, base+uint16(start), regs[start:end]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", start, end-1, err))
		} else {
			copy(sw.last[start:end], regs[start:end])
		}
		start = end
	}

	if len(errs) > 0 {
		// any partial failure: re-assert on next success
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *StatusWriter) baseAddr() uint16 {
	// Each bridge owns a fixed SlotsPerDevice block.
	return sw.baseSlot * status.SlotsPerDevice
}

func (sw *StatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)

	// Device name always lives at the end of the block
	for i := 0; i < status.SlotDeviceNameSlots && i < len(sw.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = sw.nameRegs[i]
	}

	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 uint16 registers.
// Each register stores two ASCII bytes in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < len(b); i += 2 {
		hi := b[i]
		var lo byte
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
