// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/sysex-bridge/internal/status"
	"github.com/tamzrod/sysex-bridge/internal/sysex"
)

// maxQueueDepth bounds configurable ring depths.
const maxQueueDepth = 1024

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	b := &cfg.Bridge

	// ------------------------------------------------------------
	// SCHEDULING
	// ------------------------------------------------------------

	switch b.Schedule {
	case "", "single", "dual":
	default:
		return fmt.Errorf("schedule %q: must be single or dual", b.Schedule)
	}

	// ------------------------------------------------------------
	// BUS
	// ------------------------------------------------------------

	switch b.Bus.Mode {
	case "", "sim":
	default:
		return fmt.Errorf("bus: mode %q is not supported (only sim)", b.Bus.Mode)
	}

	if b.Bus.ResponseTimeoutMs < 0 {
		return fmt.Errorf("bus: response_timeout_ms must not be negative")
	}
	if b.Bus.ReadyGuardUs < 0 {
		return fmt.Errorf("bus: ready_guard_us must not be negative")
	}

	for _, q := range []struct {
		name  string
		depth int
	}{
		{"intercept", b.Bus.Queues.Intercept},
		{"request", b.Bus.Queues.Request},
		{"response", b.Bus.Queues.Response},
	} {
		// zero keeps the default
		if q.depth == 0 {
			continue
		}
		if q.depth < 0 || q.depth > maxQueueDepth || q.depth&(q.depth-1) != 0 {
			return fmt.Errorf(
				"bus: queues.%s=%d must be a power of two up to %d",
				q.name,
				q.depth,
				maxQueueDepth,
			)
		}
	}

	if err := validateSim(&b.Bus.Sim); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// HOST TRANSPORT
	// ------------------------------------------------------------

	if (b.Host.MidiIn == "") != (b.Host.MidiOut == "") {
		return fmt.Errorf("host: midi_in and midi_out must be set together")
	}
	if b.Host.QueueDepth < 0 || b.Host.InboundLimit < 0 {
		return fmt.Errorf("host: queue_depth and inbound_limit must not be negative")
	}

	// ------------------------------------------------------------
	// CONSOLE
	// ------------------------------------------------------------

	if b.Console.Baud < 0 {
		return fmt.Errorf("console: baud must not be negative")
	}

	// stdin console and MCP stdio cannot share the terminal
	if b.MCP.Enabled && !b.Console.Disabled && b.Console.Device == "" {
		return fmt.Errorf(
			"mcp: enabled together with the stdin console; set console.device or console.disabled",
		)
	}

	// ------------------------------------------------------------
	// STATUS REPLY SHAPE (OPTIONAL)
	// ------------------------------------------------------------

	if b.StatusReply.Length != 0 || len(b.StatusReply.Header) != 0 {
		if err := validateBytes("status_reply: header", b.StatusReply.Header); err != nil {
			return err
		}
		if err := b.StatusReply.Shape().Validate(); err != nil {
			return fmt.Errorf("status_reply: %w", err)
		}
	}

	// ------------------------------------------------------------
	// STATUS BLOCK EXPORT (OPT-IN)
	// ------------------------------------------------------------

	if b.Export.Enabled() {
		e := b.Export

		// each bridge owns a fixed SlotsPerDevice block
		if (int(e.BaseSlot)+1)*status.SlotsPerDevice > 0x10000 {
			return fmt.Errorf(
				"export: base_slot %d puts the %d-register block past the register space",
				e.BaseSlot,
				status.SlotsPerDevice,
			)
		}
		if e.IntervalMs < 0 || e.TimeoutMs < 0 {
			return fmt.Errorf("export: interval_ms and timeout_ms must not be negative")
		}

		// device_name sanity (ASCII only)
		for i := 0; i < len(e.DeviceName); i++ {
			if e.DeviceName[i] > 0x7F {
				return fmt.Errorf("export: device_name must contain ASCII characters only")
			}
		}
	}

	return nil
}

func validateSim(s *SimConfig) error {
	if s.IntervalMs < 0 || s.ChangeEvery < 0 {
		return fmt.Errorf("bus: sim interval_ms and change_every must not be negative")
	}

	for _, f := range []struct {
		name  string
		frame []int
	}{
		{"poll", s.Poll},
		{"status", s.Status},
	} {
		if len(f.frame) == 0 {
			continue
		}
		if err := validateBytes("bus: sim "+f.name, f.frame); err != nil {
			return err
		}
		if !sysex.Valid(toBytes(f.frame)) {
			return fmt.Errorf("bus: sim %s is not a framed SysEx message", f.name)
		}
	}
	return nil
}

func validateBytes(what string, v []int) error {
	for i, x := range v {
		if x < 0 || x > 0xFF {
			return fmt.Errorf("%s[%d]=%d is not a byte", what, i, x)
		}
	}
	return nil
}
