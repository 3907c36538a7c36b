package types

import (
	"time"

	"github.com/urmzd/peerlobby/pkg/lobby"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// --- Request DTOs ---

// SetRoleRequest is the request body for PUT /lobby/role
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetModeRequest is the request body for PUT /lobby/mode
type SetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// StartGameRequest is the request body for POST /game/start
type StartGameRequest struct {
	Game string `json:"game" binding:"required"`
}

// SendCommandRequest is the request body for POST /commands.
// An empty TargetID broadcasts to every known peer.
type SendCommandRequest struct {
	Name     string `json:"name" binding:"required"`
	Class    string `json:"class,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

// SendSettingsRequest is the request body for POST /settings
type SendSettingsRequest struct {
	BackToWhite bool     `json:"backToWhite"`
	Duration    *float64 `json:"duration,omitempty"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Transport string    `json:"transport"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// IdentityResponse is returned from GET /lobby/identity
type IdentityResponse struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// JoinDescriptor is the payload encoded into the lobby QR code.
type JoinDescriptor struct {
	Lobby    string `json:"lobby"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// CommandResponse is returned from POST /commands
type CommandResponse struct {
	Command protocol.Command `json:"command"`
}

// --- Socket frames ---

// Socket actions accepted on /ws.
const (
	ActionJoin         = "join_lobby"
	ActionLeave        = "leave_lobby"
	ActionSetRole      = "set_role"
	ActionSetMode      = "set_remote_mode"
	ActionStartGame    = "start_game"
	ActionStopGame     = "stop_game"
	ActionSendCommand  = "send_command"
	ActionSendSettings = "send_settings"
	ActionClearError   = "clear_error"
)

// SocketRequest is a client frame on the lobby websocket.
type SocketRequest struct {
	Action      string   `json:"action"`
	Role        string   `json:"role,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Game        string   `json:"game,omitempty"`
	Name        string   `json:"name,omitempty"`
	Class       string   `json:"class,omitempty"`
	TargetID    string   `json:"targetId,omitempty"`
	BackToWhite bool     `json:"backToWhite,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// SocketMessage is a server frame: a state snapshot or an error reply.
type SocketMessage struct {
	Type  string          `json:"type"`
	State *lobby.Snapshot `json:"state,omitempty"`
	Error *ErrorResponse  `json:"error,omitempty"`
}
