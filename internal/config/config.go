// internal/config/config.go
package config

import (
	"time"

	"github.com/tamzrod/sysex-bridge/internal/dedup"
	"github.com/tamzrod/sysex-bridge/internal/pipeline"
)

type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

type BridgeConfig struct {
	// Schedule selects the loop strategy: "single" or "dual".
	Schedule string `yaml:"schedule"`

	Bus         BusConfig         `yaml:"bus"`
	Host        HostConfig        `yaml:"host"`
	Console     ConsoleConfig     `yaml:"console"`
	StatusReply StatusReplyConfig `yaml:"status_reply"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Export      ExportConfig      `yaml:"export"`
	MCP         MCPConfig         `yaml:"mcp"`
	Log         LogConfig         `yaml:"log"`
}

// ---- BUS ----

type BusConfig struct {
	// Mode selects the bus HAL. Only "sim" exists on a hosted build.
	Mode string `yaml:"mode"`

	ResponseTimeoutMs int `yaml:"response_timeout_ms"`
	ReadyGuardUs      int `yaml:"ready_guard_us"`

	Queues QueueConfig `yaml:"queues"`
	Sim    SimConfig   `yaml:"sim"`
}

type QueueConfig struct {
	Intercept int `yaml:"intercept"`
	Request   int `yaml:"request"`
	Response  int `yaml:"response"`
}

// SimConfig drives the simulated bus traffic.
type SimConfig struct {
	IntervalMs  int   `yaml:"interval_ms"`
	Poll        []int `yaml:"poll"`
	Status      []int `yaml:"status"`
	ChangeEvery int   `yaml:"change_every"`
	Glitch      bool  `yaml:"glitch"`
	Silent      bool  `yaml:"silent"` // device never replies to injected requests
}

// ---- HOST ----

type HostConfig struct {
	// MIDI port names; both empty means no host transport.
	MidiIn  string `yaml:"midi_in"`
	MidiOut string `yaml:"midi_out"`

	QueueDepth   int `yaml:"queue_depth"`
	InboundLimit int `yaml:"inbound_limit"`
}

// ---- CONSOLE ----

type ConsoleConfig struct {
	Disabled bool `yaml:"disabled"`

	// Device is a serial TTY; empty reads commands from stdin.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	Flags FlagsConfig `yaml:"flags"`
}

// FlagsConfig holds the power-up console toggles. Unset keeps the default.
type FlagsConfig struct {
	VerboseBus    *bool `yaml:"verbose_bus"`
	VerboseHost   *bool `yaml:"verbose_host"`
	Dedup         *bool `yaml:"dedup"`
	QuietRequests *bool `yaml:"quiet_requests"`
	RouteToHost   *bool `yaml:"route_to_host"`
}

// ---- STATUS REPLY ----

type StatusReplyConfig struct {
	Length int   `yaml:"length"`
	Header []int `yaml:"header"`
}

// ---- OBSERVERS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables /metrics
}

// ExportConfig mirrors the status block into Modbus holding registers.
type ExportConfig struct {
	Endpoint   string `yaml:"endpoint"` // empty disables export
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	IntervalMs int    `yaml:"interval_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	DeviceName string `yaml:"device_name"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// ---- derived values ----

func (b BusConfig) ResponseTimeout() time.Duration {
	return time.Duration(b.ResponseTimeoutMs) * time.Millisecond
}

func (b BusConfig) ReadyGuard() time.Duration {
	return time.Duration(b.ReadyGuardUs) * time.Microsecond
}

func (q QueueConfig) Pipeline() pipeline.Config {
	return pipeline.Config{
		InterceptDepth: q.Intercept,
		RequestDepth:   q.Request,
		ResponseDepth:  q.Response,
	}
}

func (s SimConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

func (h HostConfig) Enabled() bool {
	return h.MidiIn != "" || h.MidiOut != ""
}

// Settings returns the power-up flags: defaults overridden by set fields.
func (f FlagsConfig) Settings() pipeline.Flags {
	out := pipeline.DefaultFlags()
	apply := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&out.VerboseBus, f.VerboseBus)
	apply(&out.VerboseHost, f.VerboseHost)
	apply(&out.DedupStatus, f.Dedup)
	apply(&out.QuietRequests, f.QuietRequests)
	apply(&out.RouteToHost, f.RouteToHost)
	return out
}

// Shape returns the dedup shape. Call after Validate.
func (s StatusReplyConfig) Shape() dedup.Shape {
	return dedup.Shape{Length: s.Length, Header: toBytes(s.Header)}
}

func (e ExportConfig) Enabled() bool { return e.Endpoint != "" }

func (e ExportConfig) Interval() time.Duration {
	return time.Duration(e.IntervalMs) * time.Millisecond
}

func (e ExportConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

func toBytes(v []int) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}

// Frames returns the simulated poll and status frames. Call after Validate.
func (s SimConfig) Frames() (poll, status []byte) {
	return toBytes(s.Poll), toBytes(s.Status)
}
