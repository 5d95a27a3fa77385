// internal/transport/midiport/port.go
package midiport

import (
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// Defaults for Config zero values.
const (
	DefaultQueueDepth   = 8
	DefaultInboundLimit = 4 * sysex.BufferSize
)

// Config selects the MIDI ports and bounds the buffering.
type Config struct {
	// InName and OutName are matched by gomidi's port lookup.
	InName  string
	OutName string

	// QueueDepth is the number of outbound frames waiting for the sender.
	QueueDepth int
	// InboundLimit caps received bytes not yet read by the host loop.
	InboundLimit int

	// OnDrop runs (on the driver's goroutine) when an inbound SysEx
	// message is discarded because the inbound buffer is full.
	OnDrop func()
}

// Port is a host transport over a MIDI in/out port pair.
//
// Read returns the raw bytes of received SysEx messages. Write reassembles
// outbound frames and hands complete ones to a sender goroutine; it takes
// fewer bytes than offered when the sender queue is full.
type Port struct {
	mu      sync.Mutex
	in      []byte
	inLimit int
	onDrop  func()

	asm  sysex.Buffer
	out  chan []byte
	send func(midi.Message) error
	done chan struct{}
	stop func()

	log *slog.Logger
}

// Open looks up both ports, starts the SysEx listener and the sender.
// A MIDI driver must be registered by the caller (e.g. rtmididrv).
func Open(cfg Config, log *slog.Logger) (*Port, error) {
	in, err := midi.FindInPort(cfg.InName)
	if err != nil {
		return nil, fmt.Errorf("midiport: find in port %q: %w", cfg.InName, err)
	}
	out, err := midi.FindOutPort(cfg.OutName)
	if err != nil {
		return nil, fmt.Errorf("midiport: find out port %q: %w", cfg.OutName, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("midiport: open out port %q: %w", out.String(), err)
	}

	p := newPort(send, cfg, log)

	stop, err := midi.ListenTo(in, p.receive,
		midi.UseSysEx(),
		midi.SysExBufferSize(2048),
		midi.HandleError(func(err error) {
			p.log.Warn("midiport: listen error", "err", err)
		}),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("midiport: listen on %q: %w", in.String(), err)
	}
	p.stop = stop

	p.log.Info("midiport: opened", "in", in.String(), "out", out.String())
	return p, nil
}

func newPort(send func(midi.Message) error, cfg Config, log *slog.Logger) *Port {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.InboundLimit <= 0 {
		cfg.InboundLimit = DefaultInboundLimit
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Port{
		inLimit: cfg.InboundLimit,
		onDrop:  cfg.OnDrop,
		out:     make(chan []byte, cfg.QueueDepth),
		send:    send,
		done:    make(chan struct{}),
		log:     log,
	}
	go p.sender()
	return p
}

// receive is the listener callback.
func (p *Port) receive(msg midi.Message, _ int32) {
	if len(msg) == 0 || msg[0] != sysex.SOF {
		return
	}

	p.mu.Lock()
	full := len(p.in)+len(msg) > p.inLimit
	if !full {
		p.in = append(p.in, msg...)
	}
	p.mu.Unlock()

	if full {
		p.log.Debug("midiport: inbound full, message dropped", "len", len(msg))
		if p.onDrop != nil {
			p.onDrop()
		}
	}
}

func (p *Port) Read(b []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(b, p.in)
	p.in = p.in[n:]
	if len(p.in) == 0 {
		p.in = nil
	}
	return n
}

// Write must be called from a single goroutine.
func (p *Port) Write(b []byte) int {
	for i, c := range b {
		// a terminator needs a free sender slot; stop before it otherwise
		if c == sysex.EOF && p.asm.Filling() && len(p.out) == cap(p.out) {
			return i
		}

		if out, _ := p.asm.Append(c); out == sysex.Complete {
			p.out <- append([]byte(nil), p.asm.Bytes()...)
			p.asm.Clear()
		}
	}
	return len(b)
}

func (p *Port) sender() {
	defer close(p.done)
	for frame := range p.out {
		if err := p.send(midi.Message(frame)); err != nil {
			p.log.Warn("midiport: send failed", "len", len(frame), "err", err)
		}
	}
}

// Close stops the listener and waits for queued frames to be sent.
func (p *Port) Close() {
	if p.stop != nil {
		p.stop()
	}
	close(p.out)
	<-p.done
}
