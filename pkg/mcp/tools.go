package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check whether the peer transport is reachable"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_lobby_state",
			mcp.WithDescription("Get the full lobby snapshot: role, mode, game state, last command, settings, devices and any error"),
		),
		s.handleGetLobbyState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List the peers currently known to this device"),
		),
		s.handleListDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_join_info",
			mcp.WithDescription("Get the lobby name and identity another device needs to join this lobby"),
		),
		s.handleGetJoinInfo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("join_lobby",
			mcp.WithDescription("Enter the lobby. Does nothing if already active."),
		),
		s.handleJoinLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("leave_lobby",
			mcp.WithDescription("Leave the lobby: stop advertising and discovery, forget peers and reset the role to idle"),
		),
		s.handleLeaveLobby,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_role",
			mcp.WithDescription("Set this device's role. A display advertises itself; a controller discovers and connects to displays."),
			mcp.WithString("role",
				mcp.Required(),
				mcp.Enum("display", "controller", "idle"),
				mcp.Description("New role"),
			),
		),
		s.handleSetRole,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_remote_mode",
			mcp.WithDescription("Set the remote mode. none stops all transport activity."),
			mcp.WithString("mode",
				mcp.Required(),
				mcp.Enum("none", "lobby", "controller", "display"),
				mcp.Description("New remote mode"),
			),
		),
		s.handleSetRemoteMode,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("start_game",
			mcp.WithDescription("Start a game on every connected peer"),
			mcp.WithString("game",
				mcp.Required(),
				mcp.Enum(protocol.GameColors, protocol.GameChainCalc),
				mcp.Description("Game to start"),
			),
		),
		s.handleStartGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("stop_game",
			mcp.WithDescription("Return every connected peer to the lobby"),
		),
		s.handleStopGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("send_command",
			mcp.WithDescription("Send a command to one peer, or to all peers when target_id is omitted"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Command name (e.g. a color)"),
			),
			mcp.WithString("class",
				mcp.Description("Optional command class"),
			),
			mcp.WithString("target_id",
				mcp.Description("Peer id to send to (default: broadcast)"),
			),
		),
		s.handleSendCommand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("send_settings",
			mcp.WithDescription("Broadcast back-to-white display settings to all peers"),
			mcp.WithBoolean("back_to_white",
				mcp.Required(),
				mcp.Description("Whether displays revert to white after a command"),
			),
			mcp.WithNumber("duration",
				mcp.Description("Seconds before reverting (default 2)"),
			),
		),
		s.handleSendSettings,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("clear_error",
			mcp.WithDescription("Clear the current lobby error"),
		),
		s.handleClearError,
	)
}
