package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/identity"
	"github.com/urmzd/peerlobby/pkg/lobby"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	f := lobby.NewFacade(identity.Identity{ClientID: "remote-1", Name: "Remote"}, device.NewNullTransport(), lobby.Options{SettleDelay: -1})
	t.Cleanup(f.Close)
	return NewServer(f, "house")
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

func callState(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) lobby.Snapshot {
	t.Helper()
	text, isErr := call(t, handler, args)
	require.False(t, isErr, text)
	var snap lobby.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text), &snap))
	return snap
}

func TestGetHealth(t *testing.T) {
	s := newTestServer(t)
	text, isErr := call(t, s.handleGetHealth, nil)
	require.False(t, isErr)

	var out GetHealthOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "unhealthy", out.Status)
	assert.Equal(t, "disconnected", out.Transport)
}

func TestLobbyTools(t *testing.T) {
	s := newTestServer(t)

	snap := callState(t, s.handleGetLobbyState, nil)
	assert.Equal(t, lobby.ModeNone, snap.RemoteMode)

	snap = callState(t, s.handleJoinLobby, nil)
	assert.Equal(t, lobby.ModeLobby, snap.RemoteMode)

	snap = callState(t, s.handleSetRole, map[string]any{"role": "controller"})
	assert.Equal(t, device.RoleController, snap.MyRole)

	snap = callState(t, s.handleSetRemoteMode, map[string]any{"mode": "controller"})
	assert.Equal(t, lobby.ModeController, snap.RemoteMode)

	snap = callState(t, s.handleLeaveLobby, nil)
	assert.Equal(t, lobby.ModeNone, snap.RemoteMode)
	assert.Equal(t, device.RoleIdle, snap.MyRole)

	snap = callState(t, s.handleClearError, nil)
	assert.Nil(t, snap.Error)
}

func TestToolValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
	}{
		{"missing role", s.handleSetRole, nil},
		{"unknown role", s.handleSetRole, map[string]any{"role": "referee"}},
		{"unknown mode", s.handleSetRemoteMode, map[string]any{"mode": "sideways"}},
		{"unknown game", s.handleStartGame, map[string]any{"game": "chess"}},
		{"empty command", s.handleSendCommand, map[string]any{"name": ""}},
		{"settings without flag", s.handleSendSettings, map[string]any{}},
		{"negative duration", s.handleSendSettings, map[string]any{"back_to_white": true, "duration": -1.0}},
		{"duration not a number", s.handleSendSettings, map[string]any{"back_to_white": true, "duration": "long"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := call(t, tt.handler, tt.args)
			assert.True(t, isErr)
		})
	}
}

func TestGameTools(t *testing.T) {
	s := newTestServer(t)

	snap := callState(t, s.handleStartGame, map[string]any{"game": protocol.GameColors})
	assert.Equal(t, protocol.PhaseRunning, snap.GameState.State)

	snap = callState(t, s.handleStopGame, nil)
	assert.Equal(t, protocol.PhaseLobby, snap.GameState.State)

	text, isErr := call(t, s.handleSendCommand, map[string]any{"name": "blue", "class": "color"})
	require.False(t, isErr, text)
	var out SendCommandOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "blue", out.Command.Name)
	assert.Equal(t, "all", out.Target)
	assert.NotZero(t, out.Command.Timestamp)

	text, isErr = call(t, s.handleSendSettings, map[string]any{"back_to_white": true})
	require.False(t, isErr, text)
	assert.Contains(t, text, "duration=2s")
}

func TestListDevicesAndJoinInfo(t *testing.T) {
	s := newTestServer(t)

	text, _ := call(t, s.handleListDevices, nil)
	var devices ListDevicesOutput
	require.NoError(t, json.Unmarshal([]byte(text), &devices))
	assert.Equal(t, 0, devices.Count)
	assert.NotNil(t, devices.Devices)

	text, _ = call(t, s.handleGetJoinInfo, nil)
	var info JoinInfoOutput
	require.NoError(t, json.Unmarshal([]byte(text), &info))
	assert.Equal(t, JoinInfoOutput{Lobby: "house", ClientID: "remote-1", Name: "Remote"}, info)
}
