// internal/bus/loop.go
package bus

import (
	"log/slog"
	"sync/atomic"

	"github.com/tamzrod/sysex-bridge/internal/hal"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
)

// Loop is the bus-facing role: one Poll is one bus cycle.
type Loop struct {
	Snooper  *Snooper
	Injector *Injector

	// per-outcome transaction counts, Idle excluded
	outcomes [Dropped + 1]atomic.Uint64

	log *slog.Logger
}

// NewLoop builds the snooper and injector over one bus.
func NewLoop(b hal.Bus, p *pipeline.Pipeline, cfg InjectorConfig, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	s := NewSnooper(b.Upstream, b.Downstream, p)
	return &Loop{
		Snooper:  s,
		Injector: NewInjector(b, s, p, cfg),
		log:      log.With("role", "bus"),
	}
}

// Poll runs one snoop step and one injector evaluation.
func (l *Loop) Poll() {
	l.Snooper.Poll()

	out := l.Injector.Poll()
	if out == Idle {
		return
	}
	l.outcomes[out].Add(1)

	if out == Delivered {
		l.log.Debug("inject: reply captured")
	} else {
		l.log.Debug("inject: aborted", "outcome", out.String())
	}
}

// Count returns how many transactions ended with o. Safe from any goroutine.
func (l *Loop) Count(o Outcome) uint64 {
	if int(o) >= len(l.outcomes) {
		return 0
	}
	return l.outcomes[o].Load()
}
