// internal/status/status_test.go
package status

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_StickyUntilCleared(t *testing.T) {
	var r Register

	r.Raise(FaultTimeout)
	r.Raise(FaultTimeout)
	r.Raise(FaultGlitch)

	assert.True(t, r.Has(FaultTimeout))
	assert.True(t, r.Has(FaultGlitch))
	assert.False(t, r.Has(FaultFraming))
	assert.Equal(t, FaultTimeout|FaultGlitch, r.Load())

	prev := r.Clear()
	assert.Equal(t, FaultTimeout|FaultGlitch, prev)
	assert.Equal(t, Fault(0), r.Load())
}

func TestRegister_ConcurrentRaise(t *testing.T) {
	var r Register
	var wg sync.WaitGroup

	for _, f := range Faults() {
		wg.Add(1)
		go func(f Fault) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				r.Raise(f)
			}
		}(f)
	}
	wg.Wait()

	for _, f := range Faults() {
		assert.True(t, r.Has(f), f.Name())
	}
}

func TestFault_String(t *testing.T) {
	assert.Equal(t, "none", Fault(0).String())
	assert.Equal(t, "framing,timeout", (FaultFraming | FaultTimeout).String())
	assert.Equal(t, "response-full", FaultResponseFull.Name())
	assert.Equal(t, "unknown", Fault(1<<20).Name())
}

func TestEncode_Layout(t *testing.T) {
	s := Snapshot{
		Faults:    FaultOverflow | FaultInterceptFull,
		Intercept: QueuePos{Write: 0x10005, Read: 4},
		Request:   QueuePos{Write: 2, Read: 2},
		Response:  QueuePos{Write: 9, Read: 7},
		Flags:     FlagVerboseBus | FlagRouteToHost,
	}

	regs := Encode(s)
	require.Len(t, regs, SlotsPerDevice)

	assert.Equal(t, HealthFault, regs[SlotHealthCode])
	assert.Equal(t, uint16(FaultOverflow|FaultInterceptFull), regs[SlotFaultBits])
	assert.Equal(t, uint16(5), regs[SlotInterceptWrite], "counters are truncated to 16 bits")
	assert.Equal(t, uint16(4), regs[SlotInterceptRead])
	assert.Equal(t, uint16(9), regs[SlotResponseWrite])
	assert.Equal(t, uint16(7), regs[SlotResponseRead])
	assert.Equal(t, FlagVerboseBus|FlagRouteToHost, regs[SlotFlags])

	for i := SlotReservedStart; i <= SlotDeviceNameEnd; i++ {
		assert.Zero(t, regs[i], "slot %d", i)
	}
}

func TestSnapshot_HealthOKWhenClear(t *testing.T) {
	assert.Equal(t, HealthOK, Snapshot{}.Health())
}

func TestDump_ListsFaultsAndPointers(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, Snapshot{
		Faults:   FaultTimeout,
		Response: QueuePos{Write: 3, Read: 1},
		Flags:    FlagDedupStatus,
	})

	out := buf.String()
	assert.Contains(t, out, "0x0004 (timeout)")
	assert.Contains(t, out, "response:  wr=3 rd=1 pending=2")
	assert.Contains(t, out, "dedup=true")
	assert.Contains(t, out, "route-to-host=false")
}
