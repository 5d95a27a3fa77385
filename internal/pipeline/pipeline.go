// internal/pipeline/pipeline.go
package pipeline

import (
	"fmt"

	"github.com/tamzrod/sysex-bridge/internal/queue"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// Default queue depths.
const (
	DefaultInterceptDepth = 2
	DefaultRequestDepth   = 1
	DefaultResponseDepth  = 4
)

// Pair is one intercept slot: the two frames of one bus transaction.
type Pair struct {
	Upstream   sysex.Buffer
	Downstream sysex.Buffer
}

// Clear resets both buffers to idle.
func (p *Pair) Clear() {
	p.Upstream.Clear()
	p.Downstream.Clear()
}

// Filling reports whether either channel is mid-frame.
func (p *Pair) Filling() bool {
	return p.Upstream.Filling() || p.Downstream.Filling()
}

// Config sets the queue depths. Zero values take the defaults.
type Config struct {
	InterceptDepth int
	RequestDepth   int
	ResponseDepth  int
}

// Pipeline is the state shared by the bus loop and the host loop.
//
// Ownership:
//   - Intercept: bus loop writes, host loop reads.
//   - Requests:  host loop writes, bus loop reads.
//   - Responses: bus loop writes (injector and snoop mirror), host loop reads.
//
// Faults and Settings are atomics and may be touched from anywhere.
type Pipeline struct {
	Intercept *queue.Ring[Pair]
	Requests  *queue.Ring[sysex.Buffer]
	Responses *queue.Ring[sysex.Buffer]

	Faults   *status.Register
	Settings *Settings
}

// New allocates all slot buffers once.
func New(cfg Config, settings *Settings) (*Pipeline, error) {
	if cfg.InterceptDepth == 0 {
		cfg.InterceptDepth = DefaultInterceptDepth
	}
	if cfg.RequestDepth == 0 {
		cfg.RequestDepth = DefaultRequestDepth
	}
	if cfg.ResponseDepth == 0 {
		cfg.ResponseDepth = DefaultResponseDepth
	}

	for name, d := range map[string]int{
		"intercept": cfg.InterceptDepth,
		"request":   cfg.RequestDepth,
		"response":  cfg.ResponseDepth,
	} {
		if d < 0 || d&(d-1) != 0 {
			return nil, fmt.Errorf("pipeline: %s depth %d is not a power of two", name, d)
		}
	}

	if settings == nil {
		settings = NewSettings(DefaultFlags())
	}

	return &Pipeline{
		Intercept: queue.New[Pair](cfg.InterceptDepth),
		Requests:  queue.New[sysex.Buffer](cfg.RequestDepth),
		Responses: queue.New[sysex.Buffer](cfg.ResponseDepth),
		Faults:    &status.Register{},
		Settings:  settings,
	}, nil
}

// Snapshot copies the register, queue pointers and flags.
// Safe from any goroutine.
func (p *Pipeline) Snapshot() status.Snapshot {
	var s status.Snapshot

	s.Faults = p.Faults.Load()
	s.Intercept.Write, s.Intercept.Read = p.Intercept.Positions()
	s.Request.Write, s.Request.Read = p.Requests.Positions()
	s.Response.Write, s.Response.Read = p.Responses.Positions()
	s.Flags = p.Settings.Bits()

	return s
}
