// internal/status/snapshot.go
package status

// QueuePos is the raw counter pair of one queue.
type QueuePos struct {
	Write uint32
	Read  uint32
}

// Pending returns the number of published, undrained slots.
func (q QueuePos) Pending() uint32 { return q.Write - q.Read }

// Snapshot is a point-in-time copy of everything observers may report.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Faults Fault

	Intercept QueuePos
	Request   QueuePos
	Response  QueuePos

	Flags uint16
}

// Health derives the health code from the fault register.
func (s Snapshot) Health() uint16 {
	if s.Faults != 0 {
		return HealthFault
	}
	return HealthOK
}
