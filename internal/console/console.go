// internal/console/console.go
package console

import (
	"fmt"
	"io"

	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
)

// toggles maps single-character commands to the flag they flip.
var toggles = map[byte]pipeline.Flag{
	'b': pipeline.VerboseBus,
	'u': pipeline.VerboseHost,
	'd': pipeline.DedupStatus,
	'q': pipeline.QuietRequests,
	'm': pipeline.RouteToHost,
}

const helpText = `commands:
  b  toggle verbose bus traffic
  u  toggle verbose host traffic
  d  toggle status reply dedup
  q  toggle quiet bus requests
  m  toggle mirroring bus traffic to the host
  1  verbose bus on
  0  verbose bus off
  s  status dump
  c  clear fault register
  h  this help
`

// Console applies single-character commands to the shared settings and
// fault register. It runs in the host loop.
type Console struct {
	src Source
	out io.Writer
	p   *pipeline.Pipeline

	// OnClear runs after the fault register was cleared.
	OnClear func()
}

// New returns a console reading src and reporting to out.
func New(src Source, out io.Writer, p *pipeline.Pipeline) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{src: src, out: out, p: p}
}

// Poll applies at most one pending command. Non-blocking.
func (c *Console) Poll() bool {
	if c.src == nil {
		return false
	}
	cmd, ok := c.src.Poll()
	if !ok {
		return false
	}
	return c.Handle(cmd)
}

// Handle applies one command and reports whether it was recognised.
func (c *Console) Handle(cmd byte) bool {
	if f, ok := toggles[cmd]; ok {
		on := c.p.Settings.Toggle(f)
		fmt.Fprintf(c.out, "%s: %s\n", f, onOff(on))
		return true
	}

	switch cmd {
	case '1':
		c.p.Settings.Set(pipeline.VerboseBus, true)
		fmt.Fprintln(c.out, "Echo on")
	case '0':
		c.p.Settings.Set(pipeline.VerboseBus, false)
		fmt.Fprintln(c.out, "Echo off")
	case 's':
		status.Dump(c.out, c.p.Snapshot())
	case 'c':
		prev := c.p.Faults.Clear()
		fmt.Fprintf(c.out, "faults cleared (were %s)\n", prev)
		if c.OnClear != nil {
			c.OnClear()
		}
	case '?', 'h':
		io.WriteString(c.out, helpText)
	case '\r', '\n', ' ':
		return false
	default:
		fmt.Fprintf(c.out, "unknown command %q, h for help\n", cmd)
		return false
	}
	return true
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
