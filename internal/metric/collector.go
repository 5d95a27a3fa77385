// internal/metric/collector.go
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/sysex-bridge/internal/bus"
	"github.com/tamzrod/sysex-bridge/internal/host"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
)

const namespace = "sysex_bridge"

// OutcomeCounter reports injector transaction counts.
type OutcomeCounter interface {
	Count(o bus.Outcome) uint64
}

var outcomes = []bus.Outcome{bus.NotReady, bus.Invalid, bus.TimedOut, bus.Delivered, bus.Dropped}

// Collector exports the bridge state at scrape time.
// It only loads atomics; both loops keep running undisturbed.
type Collector struct {
	p     *pipeline.Pipeline
	stats *host.Stats
	inj   OutcomeCounter

	fault       *prometheus.Desc
	published   *prometheus.Desc
	released    *prometheus.Desc
	pending     *prometheus.Desc
	flag        *prometheus.Desc
	transaction *prometheus.Desc
	hostFrames  *prometheus.Desc
}

// NewCollector builds a collector. stats and inj may be nil.
func NewCollector(p *pipeline.Pipeline, stats *host.Stats, inj OutcomeCounter) *Collector {
	return &Collector{
		p:     p,
		stats: stats,
		inj:   inj,

		fault: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "fault_active"),
			"Sticky fault bit state (1 = raised since last clear).",
			[]string{"fault"}, nil),
		published: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "published_total"),
			"Slots published into the queue.",
			[]string{"queue"}, nil),
		released: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "released_total"),
			"Slots released from the queue.",
			[]string{"queue"}, nil),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "pending"),
			"Slots published and not yet released.",
			[]string{"queue"}, nil),
		flag: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "flag"),
			"Console toggle state.",
			[]string{"flag"}, nil),
		transaction: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inject", "transactions_total"),
			"Injected transactions by outcome.",
			[]string{"outcome"}, nil),
		hostFrames: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "host", "frames_total"),
			"Frames handled by the host loop.",
			[]string{"kind"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fault
	ch <- c.published
	ch <- c.released
	ch <- c.pending
	ch <- c.flag
	ch <- c.transaction
	ch <- c.hostFrames
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.p.Snapshot()

	for _, f := range status.Faults() {
		v := 0.0
		if s.Faults&f != 0 {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.fault, prometheus.GaugeValue, v, f.Name())
	}

	for _, q := range []struct {
		name string
		pos  status.QueuePos
	}{
		{"intercept", s.Intercept},
		{"request", s.Request},
		{"response", s.Response},
	} {
		// free-running uint32 counters: wrap after 4G frames
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(q.pos.Write), q.name)
		ch <- prometheus.MustNewConstMetric(c.released, prometheus.CounterValue, float64(q.pos.Read), q.name)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(q.pos.Pending()), q.name)
	}

	for _, f := range pipeline.AllFlags() {
		v := 0.0
		if c.p.Settings.Get(f) {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.flag, prometheus.GaugeValue, v, f.String())
	}

	if c.inj != nil {
		for _, o := range outcomes {
			ch <- prometheus.MustNewConstMetric(c.transaction, prometheus.CounterValue, float64(c.inj.Count(o)), o.String())
		}
	}

	if c.stats != nil {
		for _, k := range []struct {
			kind string
			v    uint64
		}{
			{"surfaced", c.stats.Surfaced.Load()},
			{"suppressed", c.stats.Suppressed.Load()},
			{"request", c.stats.Requests.Load()},
			{"response", c.stats.Responses.Load()},
		} {
			ch <- prometheus.MustNewConstMetric(c.hostFrames, prometheus.CounterValue, float64(k.v), k.kind)
		}
	}
}
