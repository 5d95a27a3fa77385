// internal/host/loop.go
package host

import (
	"log/slog"
	"sync/atomic"

	"github.com/tamzrod/sysex-bridge/internal/console"
	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
	"github.com/tamzrod/sysex-bridge/internal/transport"
)

// Stats counts host loop traffic. Safe to read from any goroutine.
type Stats struct {
	// Surfaced counts downstream frames logged as bus responses.
	Surfaced atomic.Uint64
	// Suppressed counts status replies hidden by the dedup filter.
	Suppressed atomic.Uint64
	// Requests counts host requests queued for injection.
	Requests atomic.Uint64
	// Responses counts frames fully written to the host.
	Responses atomic.Uint64
}

// Loop is the host-facing role: one Poll is one host iteration.
type Loop struct {
	p       *pipeline.Pipeline
	tr      transport.Transport
	console *console.Console
	dedup   *dedup.Filter
	log     *slog.Logger

	Stats Stats

	// bytes read from the transport and not fed to a request slot yet
	rx      [sysex.BufferSize]byte
	rxPos   int
	rxLen   int
	respPos int
}

// NewLoop builds the host loop. tr and con may be nil.
func NewLoop(p *pipeline.Pipeline, tr transport.Transport, con *console.Console, filter *dedup.Filter, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		p:       p,
		tr:      tr,
		console: con,
		dedup:   filter,
		log:     log.With("role", "host"),
	}
}

// Poll runs one non-blocking iteration.
func (l *Loop) Poll() {
	if l.console != nil {
		l.console.Poll()
	}
	l.drainIntercept()
	l.feedRequests()
	l.writeResponse()
}

// ---- intercept ----

func (l *Loop) drainIntercept() {
	q := l.p.Intercept
	if !q.Readable() {
		return
	}
	pair := q.Tail()
	settings := l.p.Settings

	verbose := settings.Get(pipeline.VerboseBus)
	if verbose && !settings.Get(pipeline.QuietRequests) {
		l.logFrame("bus request", pair.Upstream.Bytes())
	}

	if pair.Downstream.Complete() {
		frame := pair.Downstream.Bytes()
		fresh := true
		if l.dedup != nil {
			// observed even when disabled so the cache tracks the bus
			fresh = l.dedup.Observe(frame) || !settings.Get(pipeline.DedupStatus)
		}
		if fresh {
			l.Stats.Surfaced.Add(1)
			if verbose {
				l.logFrame("bus response", frame)
			}
		} else {
			l.Stats.Suppressed.Add(1)
		}
	}

	pair.Clear()
	q.Release()
}

// ---- requests ----

func (l *Loop) feedRequests() {
	q := l.p.Requests
	for q.Writable() {
		if l.rxPos == l.rxLen {
			if l.tr == nil {
				return
			}
			n := l.tr.Read(l.rx[:])
			if n == 0 {
				return
			}
			l.rxPos, l.rxLen = 0, n
		}

		slot := q.Head()
		for l.rxPos < l.rxLen {
			c := l.rx[l.rxPos]
			l.rxPos++

			out, _ := slot.Append(c)
			if out == sysex.Overflow {
				l.p.Faults.Raise(status.FaultOverflow)
				continue
			}
			if out != sysex.Complete {
				continue
			}

			if l.p.Settings.Get(pipeline.VerboseHost) {
				l.logFrame("host request", slot.Bytes())
			}
			q.Publish()
			l.Stats.Requests.Add(1)
			break
		}
	}
}

// ---- responses ----

func (l *Loop) writeResponse() {
	q := l.p.Responses
	if !q.Readable() {
		return
	}
	resp := q.Tail()
	frame := resp.Bytes()

	if l.tr != nil {
		l.respPos += l.tr.Write(frame[l.respPos:])
		if l.respPos < len(frame) {
			return
		}
	}

	if l.p.Settings.Get(pipeline.VerboseHost) {
		l.logFrame("host response", frame)
	}
	l.Stats.Responses.Add(1)

	l.respPos = 0
	resp.Clear()
	q.Release()
}

func (l *Loop) logFrame(msg string, frame []byte) {
	l.log.Info(msg, "len", len(frame), "data", sysex.Hex(frame))
}
