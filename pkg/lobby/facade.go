package lobby

import (
	"fmt"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/identity"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// Service is the transport-agnostic contract consumed by the HTTP and MCP
// surfaces.
type Service interface {
	Identity() identity.Identity
	TransportConnected() bool

	JoinLobby()
	LeaveLobby()
	SetMyRole(role device.Role) error
	SetRemoteMode(mode Mode) error
	StartGame(game string) error
	StopGame()
	SendCommand(name, class, targetID string) (protocol.Command, error)
	SendSettings(backToWhite bool, duration float64) error
	ClearError()

	State() Snapshot
	Subscribe() chan Snapshot
	Unsubscribe(ch chan Snapshot)
}

// Facade binds an identity and a transport to a Lobby and validates input
// before it reaches the state machine.
type Facade struct {
	self      identity.Identity
	transport device.Transport
	lobby     *Lobby
}

// NewFacade wires a Lobby over transport. If transport also implements
// device.EventSubscriber its events drive the lobby.
func NewFacade(self identity.Identity, transport device.Transport, opts Options) *Facade {
	events, _ := transport.(device.EventSubscriber)
	return &Facade{
		self:      self,
		transport: transport,
		lobby:     New(self, transport, events, opts),
	}
}

var _ Service = (*Facade)(nil)

func (f *Facade) Identity() identity.Identity { return f.self }

func (f *Facade) TransportConnected() bool { return f.transport.IsConnected() }

func (f *Facade) JoinLobby()  { f.lobby.JoinLobby() }
func (f *Facade) LeaveLobby() { f.lobby.LeaveLobby() }
func (f *Facade) StopGame()   { f.lobby.StopGame() }
func (f *Facade) ClearError() { f.lobby.ClearError() }

func (f *Facade) SetMyRole(role device.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", device.ErrValidation, role)
	}
	f.lobby.SetMyRole(role)
	return nil
}

func (f *Facade) SetRemoteMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", device.ErrValidation, mode)
	}
	f.lobby.SetRemoteMode(mode)
	return nil
}

func (f *Facade) StartGame(game string) error {
	switch game {
	case protocol.GameColors, protocol.GameChainCalc:
	default:
		return fmt.Errorf("%w: unknown game %q", device.ErrValidation, game)
	}
	f.lobby.StartGame(game)
	return nil
}

func (f *Facade) SendCommand(name, class, targetID string) (protocol.Command, error) {
	if name == "" {
		return protocol.Command{}, fmt.Errorf("%w: command name is required", device.ErrValidation)
	}
	return f.lobby.SendCommand(name, class, targetID), nil
}

func (f *Facade) SendSettings(backToWhite bool, duration float64) error {
	if duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", device.ErrValidation)
	}
	f.lobby.SendSettings(backToWhite, duration)
	return nil
}

func (f *Facade) State() Snapshot              { return f.lobby.State() }
func (f *Facade) Subscribe() chan Snapshot     { return f.lobby.Subscribe() }
func (f *Facade) Unsubscribe(ch chan Snapshot) { f.lobby.Unsubscribe(ch) }

// Close stops the lobby and then the transport.
func (f *Facade) Close() {
	f.lobby.Close()
	f.transport.Close()
}
