package lobby

import (
	"sort"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// Mode tracks whether the instance is active in a lobby and in which capacity.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeLobby      Mode = "lobby"
	ModeController Mode = "controller"
	ModeDisplay    Mode = "display"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeLobby, ModeController, ModeDisplay:
		return true
	}
	return false
}

// ErrorCode classifies a user-visible lobby error.
type ErrorCode string

const (
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeStartFailed      ErrorCode = "START_FAILED"
)

// Error is an advisory error surfaced to UI collaborators.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// BackToWhite is the display-side auto-revert configuration.
type BackToWhite struct {
	Enabled  bool    `json:"enabled"`
	Duration float64 `json:"duration"`
}

// DefaultBackToWhiteDuration applies when a settings message omits duration.
const DefaultBackToWhiteDuration = 2

// Session is the lobby state held by the local instance.
type Session struct {
	MyRole       device.Role
	RemoteMode   Mode
	GameState    protocol.GameState
	LastCommand  *protocol.Command
	BackToWhite  BackToWhite
	KnownDevices map[string]device.Device
}

// NewSession returns the initial (none, idle) session.
func NewSession() *Session {
	return &Session{
		MyRole:       device.RoleIdle,
		RemoteMode:   ModeNone,
		GameState:    protocol.GameState{State: protocol.PhaseLobby},
		BackToWhite:  BackToWhite{Duration: DefaultBackToWhiteDuration},
		KnownDevices: make(map[string]device.Device),
	}
}

// Upsert adds d or replaces the entry with the same id.
func (s *Session) Upsert(d device.Device) {
	s.KnownDevices[d.ID] = d
}

// Remove drops the device with the given id.
func (s *Session) Remove(id string) {
	delete(s.KnownDevices, id)
}

// ClearDevices empties the known-devices set.
func (s *Session) ClearDevices() {
	clear(s.KnownDevices)
}

// Devices returns the known devices ordered by id.
func (s *Session) Devices() []device.Device {
	out := make([]device.Device, 0, len(s.KnownDevices))
	for _, d := range s.KnownDevices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PeerIDs returns the ids of every known device.
func (s *Session) PeerIDs() []string {
	ids := make([]string, 0, len(s.KnownDevices))
	for id := range s.KnownDevices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot is a read-only copy of the lobby state for observers.
type Snapshot struct {
	Devices     []device.Device    `json:"devices"`
	MyRole      device.Role        `json:"myRole"`
	RemoteMode  Mode               `json:"remoteMode"`
	GameState   protocol.GameState `json:"gameState"`
	LastCommand *protocol.Command  `json:"lastCommand"`
	BackToWhite BackToWhite        `json:"backToWhiteSettings"`
	IsLoading   bool               `json:"isLoading"`
	Error       *Error             `json:"error"`
}

func (s *Session) snapshot(loading bool, err *Error) Snapshot {
	snap := Snapshot{
		Devices:     s.Devices(),
		MyRole:      s.MyRole,
		RemoteMode:  s.RemoteMode,
		GameState:   s.GameState,
		BackToWhite: s.BackToWhite,
		IsLoading:   loading,
	}
	if s.LastCommand != nil {
		c := *s.LastCommand
		snap.LastCommand = &c
	}
	if err != nil {
		e := *err
		snap.Error = &e
	}
	return snap
}
