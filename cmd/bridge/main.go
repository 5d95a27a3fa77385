// cmd/bridge/main.go
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/tamzrod/sysex-bridge/internal/bus"
	"github.com/tamzrod/sysex-bridge/internal/config"
	"github.com/tamzrod/sysex-bridge/internal/console"
	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/export"
	"github.com/tamzrod/sysex-bridge/internal/hal/sim"
	"github.com/tamzrod/sysex-bridge/internal/host"
	"github.com/tamzrod/sysex-bridge/internal/mcpctl"
	"github.com/tamzrod/sysex-bridge/internal/metric"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/sched"
	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/transport"
	"github.com/tamzrod/sysex-bridge/internal/transport/midiport"
)

const version = "0.1.0"

// -------------------- Logger --------------------

var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func fatal(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		fatal("usage: bridge <config.yaml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fatal("config load failed", "err", err)
	}
	if err := config.Validate(cfg); err != nil {
		fatal("config validation failed", "err", err)
	}
	config.Normalize(cfg)

	b := cfg.Bridge
	initLogger(b.Log.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Shared pipeline
	// --------------------

	p, err := pipeline.New(b.Bus.Queues.Pipeline(), pipeline.NewSettings(b.Console.Flags.Settings()))
	if err != nil {
		fatal("pipeline build failed", "err", err)
	}

	// --------------------
	// Bus (simulated board)
	// --------------------

	board := sim.NewBus()
	board.Device.Glitch = b.Bus.Sim.Glitch
	if b.Bus.Sim.Silent {
		board.Device.Respond = nil
	}
	hw := board.HAL()
	hw.Flush()

	pollFrame, statusFrame := b.Bus.Sim.Frames()
	traffic := &sim.Traffic{
		Bus:         board,
		Interval:    b.Bus.Sim.Interval(),
		Poll:        pollFrame,
		Status:      statusFrame,
		ChangeEvery: b.Bus.Sim.ChangeEvery,
	}
	go traffic.Run(ctx)

	busLoop := bus.NewLoop(hw, p, bus.InjectorConfig{
		ResponseTimeout: b.Bus.ResponseTimeout(),
		ReadyGuard:      b.Bus.ReadyGuard(),
	}, logger)

	// --------------------
	// Host transport
	// --------------------

	var tr transport.Transport
	if b.Host.Enabled() {
		port, err := midiport.Open(midiport.Config{
			InName:       b.Host.MidiIn,
			OutName:      b.Host.MidiOut,
			QueueDepth:   b.Host.QueueDepth,
			InboundLimit: b.Host.InboundLimit,
			OnDrop:       func() { p.Faults.Raise(status.FaultRequestFull) },
		}, logger)
		if err != nil {
			fatal("midi transport failed", "err", err)
		}
		defer midi.CloseDriver()
		defer port.Close()
		tr = port
	} else {
		logger.Info("host: no MIDI ports configured, responses are logged only")
	}

	// --------------------
	// Console
	// --------------------

	var con *console.Console
	if !b.Console.Disabled {
		var src console.Source
		var out io.Writer = os.Stdout

		if b.Console.Device != "" {
			sp, err := console.OpenSerial(b.Console.Device, b.Console.Baud)
			if err != nil {
				fatal("console open failed", "err", err)
			}
			defer sp.Close()
			src, out = sp, sp
		} else {
			src = console.NewReaderSource(os.Stdin)
		}

		con = console.New(src, out, p)
		con.OnClear = func() { logger.Info("console: fault register cleared") }
	}

	filter, err := dedup.New(b.StatusReply.Shape())
	if err != nil {
		fatal("status reply shape invalid", "err", err)
	}

	mirrorFilter, err := dedup.New(b.StatusReply.Shape())
	if err != nil {
		fatal("status reply shape invalid", "err", err)
	}
	busLoop.Snooper.SetMirrorFilter(mirrorFilter)

	hostLoop := host.NewLoop(p, tr, con, filter, logger)

	// --------------------
	// Observers
	// --------------------

	if b.Metrics.Listen != "" {
		reg, err := metric.NewRegistry(metric.NewCollector(p, &hostLoop.Stats, busLoop))
		if err != nil {
			fatal("metrics registry failed", "err", err)
		}
		go func() {
			if err := metric.Serve(ctx, b.Metrics.Listen, reg, logger); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if b.Export.Enabled() {
		cli, err := export.DialTCP(b.Export.Endpoint, b.Export.Timeout())
		if err != nil {
			fatal("status export failed", "err", err)
		}
		defer cli.Close()

		sw := export.NewStatusWriter(cli, b.Export.UnitID, b.Export.BaseSlot, b.Export.DeviceName)
		go export.Run(ctx, sw, p.Snapshot, b.Export.Interval(), logger)
	}

	if b.MCP.Enabled {
		srv := mcpctl.New(p, version, logger)
		go func() {
			if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
				logger.Error("mcp server stopped", "err", err)
			}
		}()
	}

	// --------------------
	// Run both loops until signalled
	// --------------------

	strategy, err := sched.ByName(b.Schedule)
	if err != nil {
		fatal("schedule failed", "err", err)
	}

	logger.Info("bridge running", "schedule", b.Schedule, "bus", b.Bus.Mode, "version", version)
	strategy.Run(ctx, busLoop, hostLoop)
	logger.Info("bridge stopped", "faults", p.Faults.Load().String())
}
