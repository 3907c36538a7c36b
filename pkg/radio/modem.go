package radio

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/device"
)

// Modem frame IDs
const (
	cmdAdvertise uint8 = 0x01
	cmdDiscover  uint8 = 0x02
	cmdStop      uint8 = 0x03
	cmdConnect   uint8 = 0x04
	cmdAccept    uint8 = 0x05
	cmdSend      uint8 = 0x06

	// Callbacks
	evtPeerFound    uint8 = 0x41
	evtPeerLost     uint8 = 0x42
	evtInvitation   uint8 = 0x43
	evtConnected    uint8 = 0x44
	evtDisconnected uint8 = 0x45
	evtText         uint8 = 0x46

	// Frame control
	controlCommand  uint8 = 0x00
	controlResponse uint8 = 0x80
	controlCallback uint8 = 0x04

	// Response status
	statusOK               uint8 = 0x00
	statusPermissionDenied uint8 = 0x01
	statusNotConnected     uint8 = 0x02
	statusUnknownPeer      uint8 = 0x03
	statusBusy             uint8 = 0x04

	headerLen      = 3
	commandTimeout = 5 * time.Second

	// maxParamsLen is the largest params block whose unstuffed DATA frame
	// (control byte, modem header, CRC) fits in maxFrameLen.
	maxParamsLen = maxFrameLen - 1 - headerLen - 2
)

var errTooManyInFlight = errors.New("all modem sequence numbers in flight")

// StatusError is a non-OK response from the modem.
type StatusError struct {
	Command uint8
	Status  uint8
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("modem command 0x%02X failed with status 0x%02X: %s", e.Command, e.Status, e.Message)
	}
	return fmt.Sprintf("modem command 0x%02X failed with status 0x%02X", e.Command, e.Status)
}

// Unwrap maps modem statuses onto the device sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case statusPermissionDenied:
		return device.ErrPermissionDenied
	case statusNotConnected:
		return device.ErrNotConnected
	case statusUnknownPeer:
		return device.ErrNotFound
	}
	return nil
}

// Modem correlates host commands with modem responses over a Link.
// Frame layout: seq(1) + control(1) + frameID(1) + params.
type Modem struct {
	link *Link

	// seq and pending are guarded by pendingMu.
	seq       uint8
	pending   map[uint8]chan []byte
	pendingMu sync.Mutex

	callbackHandler func(frameID uint8, params []byte)
	callbackMu      sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewModem creates a command layer over link.
func NewModem(link *Link) *Modem {
	return &Modem{
		link:     link,
		pending:  make(map[uint8]chan []byte),
		stopChan: make(chan struct{}),
	}
}

// Start begins processing frames from the link.
func (m *Modem) Start() {
	go m.readLoop()
}

// SetCallbackHandler sets the handler for unsolicited modem frames.
func (m *Modem) SetCallbackHandler(handler func(frameID uint8, params []byte)) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.callbackHandler = handler
}

// Close stops the modem layer.
func (m *Modem) Close() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// SendCommand sends a command and waits for the matching response. A non-OK
// status is returned as a *StatusError.
func (m *Modem) SendCommand(ctx context.Context, frameID uint8, params []byte) ([]byte, error) {
	if len(params) > maxParamsLen {
		return nil, fmt.Errorf("%w: modem command 0x%02X params of %d bytes exceed %d",
			device.ErrValidation, frameID, len(params), maxParamsLen)
	}

	seq, ch, err := m.reserve()
	if err != nil {
		return nil, fmt.Errorf("send modem command 0x%02X: %w", frameID, err)
	}
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, seq)
		m.pendingMu.Unlock()
	}()

	frame := make([]byte, 0, headerLen+len(params))
	frame = append(frame, seq, controlCommand, frameID)
	frame = append(frame, params...)

	log.Debug().
		Uint8("seq", seq).
		Uint8("frameID", frameID).
		Int("params_len", len(params)).
		Msg("Modem TX command")

	if err := m.link.SendData(frame); err != nil {
		return nil, fmt.Errorf("send modem command 0x%02X: %w", frameID, err)
	}

	select {
	case resp := <-ch:
		if len(resp) == 0 {
			return nil, fmt.Errorf("empty response to modem command 0x%02X", frameID)
		}
		if resp[0] != statusOK {
			return nil, &StatusError{Command: frameID, Status: resp[0], Message: string(resp[1:])}
		}
		return resp[1:], nil
	case <-time.After(commandTimeout):
		return nil, fmt.Errorf("timeout waiting for modem response 0x%02X: %w", frameID, device.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopChan:
		return nil, errLinkStopped
	}
}

// reserve claims the next sequence number not held by a waiting command.
func (m *Modem) reserve() (uint8, chan []byte, error) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for range 256 {
		seq := m.seq
		m.seq++
		if _, busy := m.pending[seq]; busy {
			continue
		}
		ch := make(chan []byte, 1)
		m.pending[seq] = ch
		return seq, ch, nil
	}
	return 0, nil, errTooManyInFlight
}

func (m *Modem) readLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case <-m.link.Done():
			return
		case data := <-m.link.RecvData():
			m.processFrame(data)
		}
	}
}

func (m *Modem) processFrame(data []byte) {
	if len(data) < headerLen {
		log.Debug().Int("len", len(data)).Msg("Modem frame too short")
		return
	}
	seq, control, frameID, params := data[0], data[1], data[2], data[3:]

	log.Debug().
		Uint8("seq", seq).
		Uint8("frameID", frameID).
		Bool("callback", control&controlCallback != 0).
		Str("raw_hex", hex.EncodeToString(data)).
		Msg("Modem RX frame")

	if control&controlCallback != 0 {
		m.callbackMu.RLock()
		handler := m.callbackHandler
		m.callbackMu.RUnlock()

		if handler != nil {
			handler(frameID, params)
		}
		return
	}

	if control&controlResponse == 0 {
		log.Debug().Uint8("control", control).Msg("Unexpected modem frame")
		return
	}

	m.pendingMu.Lock()
	ch, ok := m.pending[seq]
	m.pendingMu.Unlock()

	if ok {
		select {
		case ch <- params:
		default:
		}
	}
}

var errShortField = errors.New("short field")

// putString appends a u8 length-prefixed string.
func putString(buf []byte, s string) []byte {
	if len(s) > 0xFF {
		s = s[:0xFF]
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// putBlob appends a u16 little-endian length-prefixed byte slice.
func putBlob(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

type fieldReader struct {
	buf []byte
	err error
}

func (r *fieldReader) string() string {
	if r.err != nil {
		return ""
	}
	if len(r.buf) < 1 || len(r.buf) < 1+int(r.buf[0]) {
		r.err = errShortField
		return ""
	}
	n := int(r.buf[0])
	s := string(r.buf[1 : 1+n])
	r.buf = r.buf[1+n:]
	return s
}

func (r *fieldReader) blob() []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < 2 {
		r.err = errShortField
		return nil
	}
	n := int(binary.LittleEndian.Uint16(r.buf))
	if len(r.buf) < 2+n {
		r.err = errShortField
		return nil
	}
	b := make([]byte, n)
	copy(b, r.buf[2:2+n])
	r.buf = r.buf[2+n:]
	return b
}
