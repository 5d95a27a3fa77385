// internal/hal/sim/traffic.go
package sim

import (
	"context"
	"time"
)

// Traffic replays a periodic poll/status exchange on the snoop channels,
// the way the upstream master polls the downstream device.
type Traffic struct {
	Bus      *Bus
	Interval time.Duration

	// Poll is the upstream request, Status the downstream reply.
	Poll   []byte
	Status []byte

	// ChangeEvery mutates the status payload every N polls (0 = never),
	// so dedup has something to surface.
	ChangeEvery int

	status []byte
	n      int
}

// Run emits one exchange per interval until ctx is done.
func (t *Traffic) Run(ctx context.Context) {
	if t.Interval <= 0 || len(t.Poll) == 0 {
		return
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Step()
		}
	}
}

// Step emits one exchange. The reply ends on the poll's last clock.
// Not safe for concurrent use with Run.
func (t *Traffic) Step() {
	if t.status == nil {
		t.status = append([]byte(nil), t.Status...)
	}

	t.n++
	if t.ChangeEvery > 0 && t.n%t.ChangeEvery == 0 && len(t.status) > 3 {
		// last payload byte, kept in the 7-bit data range
		i := len(t.status) - 2
		t.status[i] = (t.status[i] + 1) & 0x7F
	}
	t.Bus.Exchange(t.Poll, t.status)
}
