// internal/mcpctl/server_test.go
package mcpctl

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/sysex-bridge/internal/pipeline"
	"github.com/tamzrod/sysex-bridge/internal/status"
)

func newServer(t *testing.T) (*Server, *pipeline.Pipeline) {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{}, nil)
	require.NoError(t, err)
	return New(p, "test", nil), p
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestStatus(t *testing.T) {
	s, p := newServer(t)
	p.Faults.Raise(status.FaultGlitch)

	res, err := s.handleStatus(context.Background(), call(nil))
	require.NoError(t, err)

	out := text(t, res)
	assert.Contains(t, out, "glitch")
	assert.Contains(t, out, "intercept: wr=0 rd=0")
}

func TestToggle(t *testing.T) {
	s, p := newServer(t)
	ctx := context.Background()

	res, err := s.handleToggle(ctx, call(map[string]any{"flag": "route-to-host"}))
	require.NoError(t, err)
	assert.Equal(t, "route-to-host: on", text(t, res))
	assert.True(t, p.Settings.Get(pipeline.RouteToHost))

	res, err = s.handleToggle(ctx, call(map[string]any{"flag": "verbose-bus", "state": "off"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.False(t, p.Settings.Get(pipeline.VerboseBus))

	res, err = s.handleToggle(ctx, call(map[string]any{"flag": "verbose-bus", "state": "off"}))
	require.NoError(t, err)
	assert.Equal(t, "verbose-bus: off", text(t, res), "off is idempotent")
}

func TestToggle_BadInput(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	for _, args := range []map[string]any{
		nil,
		{"flag": "turbo"},
		{"flag": "dedup", "state": "maybe"},
	} {
		res, err := s.handleToggle(ctx, call(args))
		require.NoError(t, err)
		assert.True(t, res.IsError, "args %v", args)
	}
}

func TestClearFaults(t *testing.T) {
	s, p := newServer(t)
	p.Faults.Raise(status.FaultTimeout)

	res, err := s.handleClear(context.Background(), call(nil))
	require.NoError(t, err)

	assert.Equal(t, "faults cleared (were timeout)", text(t, res))
	assert.Zero(t, p.Faults.Load())
}
