package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transportStatus := "disconnected"
	if s.svc.TransportConnected() {
		transportStatus = "connected"
	}

	status := "healthy"
	if transportStatus != "connected" {
		status = "unhealthy"
	}

	out := GetHealthOutput{
		Status:    status,
		Transport: transportStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetLobbyState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.svc.State())), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices := s.svc.State().Devices

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceToInfo(d))
	}

	out := ListDevicesOutput{
		Devices: infos,
		Count:   len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetJoinInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	self := s.svc.Identity()
	out := JoinInfoOutput{Lobby: s.lobbyName, ClientID: self.ClientID, Name: self.Name}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleJoinLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.JoinLobby()
	return s.stateResult()
}

func (s *Server) handleLeaveLobby(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.LeaveLobby()
	return s.stateResult()
}

func (s *Server) handleSetRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role, err := requiredString(request, "role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetMyRole(device.Role(role)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set role: %s", err)), nil
	}
	return s.stateResult()
}

func (s *Server) handleSetRemoteMode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := requiredString(request, "mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetRemoteMode(lobby.Mode(mode)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set remote mode: %s", err)), nil
	}
	return s.stateResult()
}

func (s *Server) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	game, err := requiredString(request, "game")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.StartGame(game); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start game: %s", err)), nil
	}
	return s.stateResult()
}

func (s *Server) handleStopGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.StopGame()
	return s.stateResult()
}

func (s *Server) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(request, "name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	class := optionalString(request, "class")
	target := optionalString(request, "target_id")

	cmd, err := s.svc.SendCommand(name, class, target)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send command: %s", err)), nil
	}

	out := SendCommandOutput{Command: cmd, Target: target}
	if target == "" {
		out.Target = "all"
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSendSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	enabled, ok := args["back_to_white"].(bool)
	if !ok {
		return mcp.NewToolResultError(`parameter "back_to_white" must be a boolean`), nil
	}
	duration := float64(lobby.DefaultBackToWhiteDuration)
	if v, present := args["duration"]; present && v != nil {
		d, ok := v.(float64)
		if !ok {
			return mcp.NewToolResultError(`parameter "duration" must be a number`), nil
		}
		duration = d
	}

	if err := s.svc.SendSettings(enabled, duration); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send settings: %s", err)), nil
	}

	out := ActionOutput{
		Success: true,
		Message: fmt.Sprintf("Settings sent (back_to_white=%t, duration=%gs)", enabled, duration),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleClearError(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.ClearError()
	return s.stateResult()
}

// stateResult reports the lobby snapshot after a state-changing tool.
func (s *Server) stateResult() (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.svc.State())), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(request mcp.CallToolRequest, key string) string {
	s, _ := request.GetArguments()[key].(string)
	return s
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
