// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/sysex-bridge/internal/bus"
	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/status"
)

// Defaults applied by Normalize.
const (
	DefaultSchedule       = "dual"
	DefaultBusMode        = "sim"
	DefaultConsoleBaud    = 115200
	DefaultSimIntervalMs  = 250
	DefaultExportInterval = 1000
	DefaultExportTimeout  = 1000
)

// Default simulated traffic: a status poll and its reply.
var (
	defaultSimPoll   = []int{0xF0, 0x00, 0x01, 0x10, 0xF7}
	defaultSimStatus = []int{0xF0, 0x00, 0x01, 0x20, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0xF7}
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	b := &cfg.Bridge

	if b.Schedule == "" {
		b.Schedule = DefaultSchedule
	}

	// ---- bus ----

	if b.Bus.Mode == "" {
		b.Bus.Mode = DefaultBusMode
	}
	if b.Bus.ResponseTimeoutMs == 0 {
		b.Bus.ResponseTimeoutMs = int(bus.DefaultResponseTimeout.Milliseconds())
	}
	// queue depths: zero is resolved by pipeline.New

	if b.Bus.Sim.IntervalMs == 0 {
		b.Bus.Sim.IntervalMs = DefaultSimIntervalMs
	}
	if len(b.Bus.Sim.Poll) == 0 {
		b.Bus.Sim.Poll = append([]int(nil), defaultSimPoll...)
	}
	if len(b.Bus.Sim.Status) == 0 {
		b.Bus.Sim.Status = append([]int(nil), defaultSimStatus...)
	}

	// ---- console ----

	if b.Console.Baud == 0 {
		b.Console.Baud = DefaultConsoleBaud
	}

	// ---- status reply ----

	if b.StatusReply.Length == 0 && len(b.StatusReply.Header) == 0 {
		def := dedup.DefaultShape()
		b.StatusReply.Length = def.Length
		b.StatusReply.Header = make([]int, len(def.Header))
		for i, x := range def.Header {
			b.StatusReply.Header[i] = int(x)
		}
	}

	// ---- export ----

	if b.Export.Enabled() {
		if b.Export.IntervalMs == 0 {
			b.Export.IntervalMs = DefaultExportInterval
		}
		if b.Export.TimeoutMs == 0 {
			b.Export.TimeoutMs = DefaultExportTimeout
		}
		if b.Export.UnitID == 0 {
			b.Export.UnitID = 1
		}

		// Normalize device_name:
		// - ASCII already validated
		// - Truncate to max 16 characters
		if len(b.Export.DeviceName) > status.DeviceNameMaxChars {
			b.Export.DeviceName = b.Export.DeviceName[:status.DeviceNameMaxChars]
		}
	}
}
