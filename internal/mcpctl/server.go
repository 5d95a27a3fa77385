// internal/mcpctl/server.go
package mcpctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
)

// Server exposes the console surface as MCP tools.
// Tools only touch the atomic settings and fault register.
type Server struct {
	p   *pipeline.Pipeline
	mcp *server.MCPServer
	log *slog.Logger
}

// New registers the bridge tools.
func New(p *pipeline.Pipeline, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		p: p,
		mcp: server.NewMCPServer(
			"SysEx Bridge",
			version,
			server.WithToolCapabilities(false),
		),
		log: log.With("role", "mcp"),
	}

	s.mcp.AddTool(mcp.NewTool("bridge_status",
		mcp.WithDescription("Returns the bridge fault register, queue pointers and console flags."),
	), s.handleStatus)

	s.mcp.AddTool(mcp.NewTool("bridge_toggle",
		mcp.WithDescription("Changes one console flag."),
		mcp.WithString("flag", mcp.Required(), mcp.Description(
			"Flag name: verbose-bus, verbose-host, dedup, quiet-requests or route-to-host.")),
		mcp.WithString("state", mcp.Description("on, off or toggle (default toggle).")),
	), s.handleToggle)

	s.mcp.AddTool(mcp.NewTool("bridge_clear_faults",
		mcp.WithDescription("Clears the sticky fault register and returns the faults it held."),
	), s.handleClear)

	return s
}

// Serve speaks MCP over in/out until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("mcp: serving on stdio")
	if err := server.NewStdioServer(s.mcp).Listen(ctx, in, out); err != nil {
		return fmt.Errorf("mcpctl: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	status.Dump(&buf, s.p.Snapshot())
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) handleToggle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("flag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := pipeline.ParseFlag(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var on bool
	switch state := request.GetString("state", "toggle"); state {
	case "toggle":
		on = s.p.Settings.Toggle(f)
	case "on", "off":
		on = state == "on"
		s.p.Settings.Set(f, on)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("state %q: must be on, off or toggle", state)), nil
	}

	s.log.Info("mcp: flag changed", "flag", f.String(), "on", on)
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", f, onOff(on))), nil
}

func (s *Server) handleClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prev := s.p.Faults.Clear()
	s.log.Info("mcp: faults cleared", "were", prev.String())
	return mcp.NewToolResultText(fmt.Sprintf("faults cleared (were %s)", prev)), nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
