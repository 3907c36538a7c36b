// Package radio drives a serial-attached radio modem that performs the
// actual peer advertising, discovery and link management.
package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/device"
)

// Transport implements device.Transport and device.EventSubscriber on top
// of the modem command set.
type Transport struct {
	device.EventHub

	serial *SerialPort
	link   *Link
	modem  *Modem

	names   map[string]string // peer id -> endpoint name
	namesMu sync.RWMutex
}

// Open opens portPath and performs the link handshake.
func Open(portPath string, baud int) (*Transport, error) {
	log.Info().Str("port", portPath).Msg("Initializing radio modem")
	s, err := OpenSerial(portPath, baud)
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}
	t, err := NewTransport(s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return t, nil
}

// NewTransport performs the link handshake over an open port.
func NewTransport(s *SerialPort) (*Transport, error) {
	link := NewLink(s)
	modem := NewModem(link)

	t := &Transport{
		serial: s,
		link:   link,
		modem:  modem,
		names:  make(map[string]string),
	}
	modem.SetCallbackHandler(t.handleCallback)

	if err := link.Connect(); err != nil {
		link.Close()
		return nil, fmt.Errorf("link connect: %w", err)
	}
	modem.Start()

	log.Info().Msg("Radio modem ready")
	return t, nil
}

func encodePresence(self device.Presence) []byte {
	buf := putString(nil, self.ClientID)
	buf = putString(buf, self.Name)
	return putString(buf, string(self.Role))
}

func (t *Transport) StartAdvertising(ctx context.Context, self device.Presence) error {
	if _, err := t.modem.SendCommand(ctx, cmdAdvertise, encodePresence(self)); err != nil {
		return fmt.Errorf("start advertising: %w", err)
	}
	log.Info().Str("name", self.Name).Msg("Advertising")
	return nil
}

func (t *Transport) StartDiscovery(ctx context.Context, self device.Presence) error {
	if _, err := t.modem.SendCommand(ctx, cmdDiscover, encodePresence(self)); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	log.Info().Str("name", self.Name).Msg("Discovering")
	return nil
}

func (t *Transport) StopAll(ctx context.Context) error {
	if !t.link.IsConnected() {
		return nil
	}
	if _, err := t.modem.SendCommand(ctx, cmdStop, nil); err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	t.namesMu.Lock()
	clear(t.names)
	t.namesMu.Unlock()
	return nil
}

func (t *Transport) Connect(ctx context.Context, peerID string) error {
	if _, err := t.modem.SendCommand(ctx, cmdConnect, putString(nil, peerID)); err != nil {
		return fmt.Errorf("connect %s: %w", peerID, err)
	}
	return nil
}

func (t *Transport) Accept(ctx context.Context, peerID string) error {
	if _, err := t.modem.SendCommand(ctx, cmdAccept, putString(nil, peerID)); err != nil {
		return fmt.Errorf("accept %s: %w", peerID, err)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, peerID string, payload []byte) error {
	params := putBlob(putString(nil, peerID), payload)
	if _, err := t.modem.SendCommand(ctx, cmdSend, params); err != nil {
		return fmt.Errorf("send to %s: %w", peerID, err)
	}
	return nil
}

func (t *Transport) IsConnected() bool {
	return t.link.IsConnected()
}

func (t *Transport) Close() {
	t.modem.Close()
	t.link.Close()
	if err := t.serial.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close serial port")
	}
}

// handleCallback turns unsolicited modem frames into transport events.
func (t *Transport) handleCallback(frameID uint8, params []byte) {
	r := &fieldReader{buf: params}
	peerID := r.string()
	evt := device.Event{PeerID: peerID, Timestamp: time.Now()}

	switch frameID {
	case evtPeerFound:
		evt.Type = device.EventPeerFound
		evt.Name = r.string()
		if r.err == nil {
			t.namesMu.Lock()
			t.names[peerID] = evt.Name
			t.namesMu.Unlock()
		}
	case evtPeerLost:
		evt.Type = device.EventPeerLost
	case evtInvitation:
		evt.Type = device.EventInvitation
		evt.Name = r.string()
	case evtConnected:
		evt.Type = device.EventConnected
		t.namesMu.RLock()
		evt.Name = t.names[peerID]
		t.namesMu.RUnlock()
	case evtDisconnected:
		evt.Type = device.EventDisconnected
	case evtText:
		evt.Type = device.EventText
		evt.Payload = r.blob()
	default:
		log.Debug().Uint8("frameID", frameID).Msg("Unhandled modem callback")
		return
	}

	if r.err != nil || peerID == "" {
		log.Warn().Uint8("frameID", frameID).Msg("Malformed modem callback")
		return
	}

	log.Debug().Str("type", string(evt.Type)).Str("peer", peerID).Msg("Radio event")
	t.Publish(evt)
}
