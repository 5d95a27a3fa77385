// internal/export/status_writer_test.go
package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/sysex-bridge/internal/status"
)

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeClient struct {
	mu     sync.Mutex
	writes []writeCall
	fail   bool
}

func (f *fakeClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection reset")
	}
	f.writes = append(f.writes, writeCall{
		unitID: unitID,
		addr:   addr,
		regs:   append([]uint16(nil), regs...),
	})
	return nil
}

func (f *fakeClient) calls() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.writes...)
}

// ---- tests ----

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeClient{}
	sw := NewStatusWriter(cli, 3, 2, "BRIDGE-01")

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(status.Snapshot{}); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	calls := cli.calls()
	if len(calls) != 1 || len(calls[0].regs) != status.SlotsPerDevice {
		t.Fatalf("expected one full block write, got %+v", calls)
	}
	if calls[0].unitID != 3 || calls[0].addr != 2*status.SlotsPerDevice {
		t.Fatalf("unexpected target: unit=%d addr=%d", calls[0].unitID, calls[0].addr)
	}

	expectedNameRegs := encodeDeviceNameRegs("BRIDGE-01")
	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if calls[0].regs[slot] != expectedNameRegs[i] {
			t.Fatalf(
				"device name slot %d mismatch: got=%d want=%d",
				slot,
				calls[0].regs[slot],
				expectedNameRegs[i],
			)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	next := status.Snapshot{Faults: status.FaultTimeout}
	if err := sw.WriteStatus(next); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	calls = cli.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(calls))
	}
	// health and fault bits are adjacent: one run
	last := calls[1]
	if last.addr != 2*status.SlotsPerDevice+status.SlotHealthCode || len(last.regs) != 2 {
		t.Fatalf("unexpected incremental write: %+v", last)
	}
	if last.regs[0] != status.HealthFault || last.regs[1] != uint16(status.FaultTimeout) {
		t.Fatalf("unexpected values: %v", last.regs)
	}
}

func TestWriteStatus_NoChangeNoWrite(t *testing.T) {
	cli := &fakeClient{}
	sw := NewStatusWriter(cli, 1, 0, "")

	s := status.Snapshot{Flags: status.FlagVerboseBus}
	for i := 0; i < 3; i++ {
		if err := sw.WriteStatus(s); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if n := len(cli.calls()); n != 1 {
		t.Fatalf("expected only the full assert, got %d writes", n)
	}
}

func TestWriteStatus_SeparateRuns(t *testing.T) {
	cli := &fakeClient{}
	sw := NewStatusWriter(cli, 1, 0, "")

	if err := sw.WriteStatus(status.Snapshot{}); err != nil {
		t.Fatalf("full assert: %v", err)
	}

	s := status.Snapshot{
		Intercept: status.QueuePos{Write: 1},
		Response:  status.QueuePos{Read: 4},
	}
	if err := sw.WriteStatus(s); err != nil {
		t.Fatalf("incremental: %v", err)
	}

	calls := cli.calls()[1:]
	if len(calls) != 2 {
		t.Fatalf("expected 2 runs, got %+v", calls)
	}
	if calls[0].addr != status.SlotInterceptWrite || calls[1].addr != status.SlotResponseRead {
		t.Fatalf("unexpected run addresses: %d %d", calls[0].addr, calls[1].addr)
	}
}

func TestWriteStatus_FailureForcesFullReassert(t *testing.T) {
	cli := &fakeClient{}
	sw := NewStatusWriter(cli, 1, 0, "X")

	if err := sw.WriteStatus(status.Snapshot{}); err != nil {
		t.Fatalf("full assert: %v", err)
	}

	cli.fail = true
	if err := sw.WriteStatus(status.Snapshot{Faults: status.FaultGlitch}); err == nil {
		t.Fatalf("expected error")
	}

	cli.fail = false
	if err := sw.WriteStatus(status.Snapshot{Faults: status.FaultGlitch}); err != nil {
		t.Fatalf("recovery write: %v", err)
	}

	calls := cli.calls()
	if got := len(calls[len(calls)-1].regs); got != status.SlotsPerDevice {
		t.Fatalf("expected full block after failure, got %d regs", got)
	}
}

func TestEncodeDeviceNameRegs(t *testing.T) {
	regs := encodeDeviceNameRegs("AB\x01")
	if regs[0] != uint16('A')<<8|uint16('B') {
		t.Fatalf("reg0 = %#04x", regs[0])
	}
	if regs[1] != uint16('?')<<8 {
		t.Fatalf("reg1 = %#04x", regs[1])
	}
	for i := 2; i < len(regs); i++ {
		if regs[i] != 0 {
			t.Fatalf("reg%d not zero", i)
		}
	}
}

func TestRun_WritesAtStartAndOnTick(t *testing.T) {
	cli := &fakeClient{}
	sw := NewStatusWriter(cli, 1, 0, "")

	var mu sync.Mutex
	faults := status.Fault(0)
	snapshot := func() status.Snapshot {
		mu.Lock()
		defer mu.Unlock()
		return status.Snapshot{Faults: faults}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, sw, snapshot, 5*time.Millisecond, nil)
		close(done)
	}()

	waitFor(t, func() bool { return len(cli.calls()) >= 1 })

	mu.Lock()
	faults = status.FaultOverflow
	mu.Unlock()

	waitFor(t, func() bool { return len(cli.calls()) >= 2 })

	cancel()
	<-done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
