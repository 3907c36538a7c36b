package lobby

import (
	"time"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// DefaultCommandStaleness bounds the age of an accepted command.
const DefaultCommandStaleness = 10 * time.Second

// Dispatcher decodes inbound payloads and applies them to a Session.
// Updates are last-writer-wins; only commands carry a staleness check.
type Dispatcher struct {
	codec     *protocol.Codec
	staleness time.Duration
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. A zero staleness selects the default.
func NewDispatcher(codec *protocol.Codec, staleness time.Duration, now func() time.Time) *Dispatcher {
	if staleness <= 0 {
		staleness = DefaultCommandStaleness
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{codec: codec, staleness: staleness, now: now}
}

// Dispatch applies payload received from peerID to s. The returned error is
// for diagnostics only; s is left untouched whenever it is non-nil.
func (d *Dispatcher) Dispatch(s *Session, peerID string, payload []byte) error {
	msg, err := d.codec.Decode(payload)
	if err != nil {
		return err
	}
	return d.Apply(s, peerID, msg)
}

// Apply applies an already decoded message.
func (d *Dispatcher) Apply(s *Session, peerID string, msg protocol.Message) error {
	now := d.now()

	switch m := msg.(type) {
	case protocol.DeviceInfo:
		clientID := m.ID
		if clientID == "" {
			clientID = peerID
		}
		s.Upsert(device.Device{
			ID:       peerID,
			ClientID: clientID,
			Name:     m.Name,
			Role:     device.ParseRole(string(m.Role)),
			LastSeen: now,
		})

	case protocol.Command:
		cutoff := now.Add(-d.staleness).UnixMilli()
		if m.Timestamp <= cutoff {
			return ErrStaleCommand
		}
		c := m
		s.LastCommand = &c
		touch(s, peerID, now)

	case protocol.GameStateUpdate:
		s.GameState = m.State
		touch(s, peerID, now)

	case protocol.Settings:
		cfg := BackToWhite{Duration: DefaultBackToWhiteDuration}
		if m.BackToWhite != nil {
			cfg.Enabled = *m.BackToWhite
		}
		if m.Duration != nil {
			cfg.Duration = *m.Duration
		}
		s.BackToWhite = cfg
		touch(s, peerID, now)

	default:
		return protocol.ErrUnknownType
	}
	return nil
}

// touch refreshes lastSeen for a known sender.
func touch(s *Session, peerID string, now time.Time) {
	if d, ok := s.KnownDevices[peerID]; ok {
		d.LastSeen = now
		s.KnownDevices[peerID] = d
	}
}
