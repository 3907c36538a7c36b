package protocol

import "github.com/urmzd/peerlobby/pkg/device"

// Type is the wire discriminant carried in every message's "type" field.
type Type string

// Message types
const (
	TypeDeviceInfo Type = "device_info"
	TypeCommand    Type = "command"
	TypeGameState  Type = "game_state"
	TypeSettings   Type = "settings"
)

// Phase is the coarse state of the shared game.
type Phase string

const (
	PhaseLobby   Phase = "LOBBY"
	PhaseRunning Phase = "RUNNING"
)

// Game identifiers carried in game_state messages
const (
	GameColors    = "colors"
	GameChainCalc = "chain-calc"
)

// Message is implemented by every wire message.
type Message interface {
	MessageType() Type
}

// DeviceInfo is the handshake sent in both directions after a connection
// is established.
type DeviceInfo struct {
	Role device.Role `json:"role"`
	Name string      `json:"name"`
	ID   string      `json:"id,omitempty"`
}

// Command is a remote-control instruction. Timestamp is the sender's wall
// clock in milliseconds.
type Command struct {
	Name      string `json:"name"`
	Class     string `json:"class"`
	Timestamp int64  `json:"timestamp"`
}

// GameState is the shared game state replaced wholesale by game_state messages.
type GameState struct {
	State Phase  `json:"state"`
	Game  string `json:"game,omitempty"`
}

// GameStateUpdate wraps GameState on the wire.
type GameStateUpdate struct {
	State GameState `json:"state"`
}

// Settings carries the Back-to-White configuration. Fields are optional on
// receipt; see Dispatch defaults.
type Settings struct {
	BackToWhite *bool    `json:"backToWhite,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// NewSettings builds a fully populated Settings message.
func NewSettings(backToWhite bool, duration float64) Settings {
	return Settings{BackToWhite: &backToWhite, Duration: &duration}
}

func (DeviceInfo) MessageType() Type      { return TypeDeviceInfo }
func (Command) MessageType() Type         { return TypeCommand }
func (GameStateUpdate) MessageType() Type { return TypeGameState }
func (Settings) MessageType() Type        { return TypeSettings }
