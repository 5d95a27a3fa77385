// internal/host/loop_test.go
package host

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/sysex-bridge/internal/console"
	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/transport"
)

type fixture struct {
	p    *pipeline.Pipeline
	tr   *transport.Buffer
	logs *bytes.Buffer
	loop *Loop
}

func newFixture(t *testing.T, flags pipeline.Flags, depths pipeline.Config) *fixture {
	t.Helper()

	p, err := pipeline.New(depths, pipeline.NewSettings(flags))
	require.NoError(t, err)
	filter, err := dedup.New(dedup.DefaultShape())
	require.NoError(t, err)

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	tr := &transport.Buffer{}

	return &fixture{
		p:    p,
		tr:   tr,
		logs: &logs,
		loop: NewLoop(p, tr, nil, filter, log),
	}
}

func (f *fixture) intercept(t *testing.T, up, down []byte) {
	t.Helper()
	require.True(t, f.p.Intercept.Writable())
	pair := f.p.Intercept.Head()
	pair.Upstream.Load(up)
	if down != nil {
		pair.Downstream.Load(down)
	}
	f.p.Intercept.Publish()
}

func (f *fixture) respond(t *testing.T, frame []byte) {
	t.Helper()
	require.True(t, f.p.Responses.Writable())
	f.p.Responses.Head().Load(frame)
	f.p.Responses.Publish()
}

func statusReply(v byte) []byte {
	r := make([]byte, dedup.DefaultLength)
	copy(r, dedup.DefaultHeader)
	r[len(r)-2] = v
	r[len(r)-1] = 0xF7
	return r
}

// ---- intercept drain ----

func TestLoop_DrainsInterceptAndLogs(t *testing.T) {
	f := newFixture(t, pipeline.DefaultFlags(), pipeline.Config{})
	f.intercept(t, []byte{0xF0, 0x01, 0xF7}, []byte{0xF0, 0x02, 0xF7})
	slot := f.p.Intercept.Tail()

	f.loop.Poll()

	assert.False(t, f.p.Intercept.Readable())
	assert.Contains(t, f.logs.String(), `msg="bus request" role=host len=3 data="f0 01 f7"`)
	assert.Contains(t, f.logs.String(), `msg="bus response"`)
	assert.EqualValues(t, 1, f.loop.Stats.Surfaced.Load())

	// slot was cleared before release
	assert.True(t, slot.Upstream.Empty())
	assert.True(t, slot.Downstream.Empty())
}

func TestLoop_QuietRequestsHidesUpstream(t *testing.T) {
	flags := pipeline.DefaultFlags()
	flags.QuietRequests = true
	f := newFixture(t, flags, pipeline.Config{})
	f.intercept(t, []byte{0xF0, 0x01, 0xF7}, []byte{0xF0, 0x02, 0xF7})

	f.loop.Poll()

	assert.NotContains(t, f.logs.String(), "bus request")
	assert.Contains(t, f.logs.String(), "bus response")
}

func TestLoop_VerboseBusOffStillDrains(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	f.intercept(t, []byte{0xF0, 0x01, 0xF7}, nil)

	f.loop.Poll()

	assert.False(t, f.p.Intercept.Readable())
	assert.Empty(t, f.logs.String())
}

func TestLoop_DedupSuppressesRepeatedStatus(t *testing.T) {
	f := newFixture(t, pipeline.DefaultFlags(), pipeline.Config{})

	for i := 0; i < 3; i++ {
		f.intercept(t, []byte{0xF0, 0x00, 0xF7}, statusReply(1))
		f.loop.Poll()
	}
	f.intercept(t, []byte{0xF0, 0x00, 0xF7}, statusReply(2))
	f.loop.Poll()

	assert.EqualValues(t, 2, f.loop.Stats.Surfaced.Load())
	assert.EqualValues(t, 2, f.loop.Stats.Suppressed.Load())
	assert.Equal(t, 2, bytes.Count(f.logs.Bytes(), []byte("bus response")))
	assert.False(t, f.p.Intercept.Readable(), "suppressed frames are still drained")
}

func TestLoop_DedupDisabledSurfacesEverything(t *testing.T) {
	flags := pipeline.DefaultFlags()
	flags.DedupStatus = false
	f := newFixture(t, flags, pipeline.Config{})

	for i := 0; i < 3; i++ {
		f.intercept(t, []byte{0xF0, 0x00, 0xF7}, statusReply(1))
		f.loop.Poll()
	}
	assert.EqualValues(t, 3, f.loop.Stats.Surfaced.Load())

	// cache kept tracking while disabled
	f.p.Settings.Set(pipeline.DedupStatus, true)
	f.intercept(t, []byte{0xF0, 0x00, 0xF7}, statusReply(1))
	f.loop.Poll()
	assert.EqualValues(t, 1, f.loop.Stats.Suppressed.Load())
}

// ---- request feed ----

func TestLoop_FeedsRequestFromTransport(t *testing.T) {
	f := newFixture(t, pipeline.DefaultFlags(), pipeline.Config{})
	f.tr.Feed(0x00, 0xF0, 0x10, 0x11, 0xF7)

	f.loop.Poll()

	require.True(t, f.p.Requests.Readable())
	assert.Equal(t, []byte{0xF0, 0x10, 0x11, 0xF7}, f.p.Requests.Tail().Bytes())
	assert.EqualValues(t, 1, f.loop.Stats.Requests.Load())
	assert.Contains(t, f.logs.String(), `msg="host request" role=host len=4`)
}

func TestLoop_RequestSplitAcrossReads(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	f.tr.Feed(0xF0, 0x10)
	f.loop.Poll()
	assert.False(t, f.p.Requests.Readable())

	f.tr.Feed(0x11, 0xF7)
	f.loop.Poll()
	require.True(t, f.p.Requests.Readable())
	assert.Equal(t, []byte{0xF0, 0x10, 0x11, 0xF7}, f.p.Requests.Tail().Bytes())
}

func TestLoop_LeftoverBytesStayPending(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	f.tr.Feed(0xF0, 0x01, 0xF7, 0xF0, 0x02, 0xF7)

	f.loop.Poll()
	require.True(t, f.p.Requests.Readable())
	assert.Equal(t, []byte{0xF0, 0x01, 0xF7}, f.p.Requests.Tail().Bytes())
	assert.Equal(t, 0, f.tr.Pending(), "read in one go")

	// queue full: nothing lost, nothing read
	f.tr.Feed(0xF0, 0x03, 0xF7)
	f.loop.Poll()
	assert.Equal(t, 3, f.tr.Pending())

	// bus side consumes
	f.p.Requests.Tail().Clear()
	f.p.Requests.Release()

	f.loop.Poll()
	require.True(t, f.p.Requests.Readable())
	assert.Equal(t, []byte{0xF0, 0x02, 0xF7}, f.p.Requests.Tail().Bytes())
	assert.Equal(t, 3, f.tr.Pending())
	assert.Zero(t, f.p.Faults.Load())
}

func TestLoop_FillsDeeperRequestQueueInOnePoll(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{RequestDepth: 4})
	f.tr.Feed(0xF0, 0x01, 0xF7, 0xF0, 0x02, 0xF7, 0xF0, 0x03, 0xF7)

	f.loop.Poll()

	assert.Equal(t, 3, f.p.Requests.Len())
	assert.EqualValues(t, 3, f.loop.Stats.Requests.Load())
}

func TestLoop_OversizedRequestRaisesOverflow(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	big := make([]byte, 200)
	big[0] = 0xF0
	for i := 1; i < len(big); i++ {
		big[i] = 0x01
	}
	f.tr.Feed(big...)

	for i := 0; i < 3; i++ {
		f.loop.Poll()
	}

	assert.True(t, f.p.Faults.Has(status.FaultOverflow))
	assert.False(t, f.p.Requests.Readable())
}

// ---- response write ----

func TestLoop_WritesResponse(t *testing.T) {
	f := newFixture(t, pipeline.DefaultFlags(), pipeline.Config{})
	f.respond(t, []byte{0xF0, 0x7F, 0x01, 0xF7})

	f.loop.Poll()

	assert.Equal(t, []byte{0xF0, 0x7F, 0x01, 0xF7}, f.tr.Written())
	assert.False(t, f.p.Responses.Readable())
	assert.EqualValues(t, 1, f.loop.Stats.Responses.Load())
	assert.Contains(t, f.logs.String(), "host response")
}

func TestLoop_ResumesPartialWrite(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	f.tr.WriteLimit = 3
	f.respond(t, []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0xF7})
	f.respond(t, []byte{0xF0, 0x05, 0xF7})

	f.loop.Poll()
	assert.Equal(t, 2, f.p.Responses.Len())
	f.loop.Poll()
	assert.Equal(t, 1, f.p.Responses.Len())
	f.loop.Poll()
	assert.Equal(t, 0, f.p.Responses.Len())

	assert.Equal(t, []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0xF7, 0xF0, 0x05, 0xF7}, f.tr.Written())
}

func TestLoop_BlockedTransportKeepsResponse(t *testing.T) {
	f := newFixture(t, pipeline.Flags{}, pipeline.Config{})
	f.tr.Capacity = 2
	f.respond(t, []byte{0xF0, 0x01, 0xF7})

	f.loop.Poll()
	f.loop.Poll()
	assert.True(t, f.p.Responses.Readable())
	assert.Equal(t, []byte{0xF0, 0x01}, f.tr.Written())

	f.loop.Poll()
	assert.False(t, f.p.Responses.Readable())
	assert.Equal(t, []byte{0xF7}, f.tr.Written())
}

func TestLoop_NoTransportDiscardsResponses(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{}, nil)
	require.NoError(t, err)
	var logs bytes.Buffer
	l := NewLoop(p, nil, nil, nil, slog.New(slog.NewTextHandler(&logs, nil)))

	p.Responses.Head().Load([]byte{0xF0, 0x01, 0xF7})
	p.Responses.Publish()

	l.Poll()

	assert.False(t, p.Responses.Readable())
	assert.Contains(t, logs.String(), "host response")
}

// ---- console ----

type oneShot struct{ cmd byte }

func (o *oneShot) Poll() (byte, bool) {
	if o.cmd == 0 {
		return 0, false
	}
	c := o.cmd
	o.cmd = 0
	return c, true
}

func TestLoop_AppliesConsoleCommand(t *testing.T) {
	p, err := pipeline.New(pipeline.Config{}, nil)
	require.NoError(t, err)
	con := console.New(&oneShot{cmd: 'm'}, nil, p)
	l := NewLoop(p, nil, con, nil, nil)

	l.Poll()

	assert.True(t, p.Settings.Get(pipeline.RouteToHost))
}
