// internal/bus/deadline.go
package bus

import "time"

// deadline is a poll-with-timeout primitive: callers do their own
// non-blocking check and ask Expired on every spin.
type deadline struct {
	at  time.Time
	now func() time.Time
}

func newDeadline(now func() time.Time, d time.Duration) deadline {
	return deadline{at: now().Add(d), now: now}
}

func (d deadline) Expired() bool {
	return d.now().After(d.at)
}

// wait spins until d elapses. Zero or negative returns immediately.
func wait(now func() time.Time, d time.Duration) {
	if d <= 0 {
		return
	}
	dl := newDeadline(now, d)
	for !dl.Expired() {
	}
}
