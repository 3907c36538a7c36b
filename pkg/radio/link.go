package radio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/device"
)

// Framing constants. Frames are byte-stuffed and terminated by a flag byte;
// the last two bytes before the flag are a CRC-CCITT over the rest.
const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	xonByte    = 0x11
	xoffByte   = 0x13
	flipBit    = 0x20
	cancelByte = 0x1A
	substitute = 0x18

	frameData   = 0x00
	frameRST    = 0xC0
	frameRSTACK = 0xC1
	frameERROR  = 0xC2

	maxFrameLen  = 4096
	resetTimeout = 5 * time.Second
)

type linkState int

const (
	linkDisconnected linkState = iota
	linkResetPending
	linkConnected
)

var errLinkStopped = errors.New("link stopped")

// Link carries data frames between host and modem over a SerialPort.
type Link struct {
	serial  *SerialPort
	state   linkState
	stateMu sync.RWMutex

	recvChan chan []byte
	connChan chan struct{}

	stopChan chan struct{}
	stopped  bool
	stopMu   sync.Mutex
}

// NewLink creates a framing layer over s.
func NewLink(s *SerialPort) *Link {
	return &Link{
		serial:   s,
		state:    linkDisconnected,
		recvChan: make(chan []byte, 64),
		connChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Connect sends RST and waits for the modem's RSTACK.
func (l *Link) Connect() error {
	l.setState(linkResetPending)

	go l.readLoop()

	if err := l.sendControl(frameRST); err != nil {
		return fmt.Errorf("send RST: %w", err)
	}

	select {
	case <-l.connChan:
		log.Info().Msg("Modem link established")
		return nil
	case <-time.After(resetTimeout):
		return fmt.Errorf("timeout waiting for RSTACK")
	case <-l.stopChan:
		return errLinkStopped
	}
}

// SendData wraps payload in a DATA frame.
func (l *Link) SendData(payload []byte) error {
	if !l.IsConnected() {
		return fmt.Errorf("link not connected")
	}

	frame := encodeFrame(append([]byte{frameData}, payload...))
	if n := len(frame) - 1; n > maxFrameLen {
		return fmt.Errorf("%w: stuffed DATA frame of %d bytes exceeds %d", device.ErrValidation, n, maxFrameLen)
	}
	log.Debug().Int("payload_len", len(payload)).Msg("Link TX DATA")

	if _, err := l.serial.Write(frame); err != nil {
		return fmt.Errorf("write DATA frame: %w", err)
	}
	return nil
}

// RecvData returns the channel of received DATA payloads.
func (l *Link) RecvData() <-chan []byte {
	return l.recvChan
}

// IsConnected returns true once the RST handshake has completed.
func (l *Link) IsConnected() bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.state == linkConnected
}

// Close stops the link. The serial port is closed by its owner.
func (l *Link) Close() {
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	if !l.stopped {
		l.stopped = true
		close(l.stopChan)
	}
	l.setState(linkDisconnected)
}

// Done is closed when the link stops.
func (l *Link) Done() <-chan struct{} {
	return l.stopChan
}

func (l *Link) setState(s linkState) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()
}

func (l *Link) sendControl(control byte) error {
	if control == frameRST {
		// Flush whatever partial frame the modem is holding.
		if _, err := l.serial.Write([]byte{cancelByte}); err != nil {
			return err
		}
	}
	_, err := l.serial.Write(encodeFrame([]byte{control}))
	return err
}

func (l *Link) readLoop() {
	buf := make([]byte, 0, 256)

	for {
		select {
		case <-l.stopChan:
			return
		default:
		}

		b, err := l.serial.ReadByte()
		if err != nil {
			l.stopMu.Lock()
			stopped := l.stopped
			l.stopMu.Unlock()
			if stopped {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				log.Warn().Err(err).Msg("Modem stream closed")
				l.Close()
				return
			}
			log.Error().Err(err).Msg("Link read error")
			continue
		}

		switch b {
		case cancelByte, substitute:
			buf = buf[:0]
		case xonByte, xoffByte:
		case flagByte:
			if len(buf) > 0 {
				l.processFrame(buf)
				buf = buf[:0]
			}
		default:
			buf = append(buf, b)
			if len(buf) > maxFrameLen {
				buf = buf[:0]
			}
		}
	}
}

func (l *Link) processFrame(stuffed []byte) {
	body, err := decodeFrame(stuffed)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping link frame")
		return
	}

	switch control := body[0]; control {
	case frameRSTACK:
		log.Debug().Msg("Link RX RSTACK")
		l.setState(linkConnected)
		select {
		case l.connChan <- struct{}{}:
		default:
		}
	case frameERROR:
		log.Error().Hex("frame", body).Msg("Modem reported link error")
	case frameData:
		data := make([]byte, len(body)-1)
		copy(data, body[1:])
		select {
		case l.recvChan <- data:
		default:
			log.Warn().Msg("Link recv channel full, dropping frame")
		}
	default:
		log.Debug().Uint8("control", control).Msg("Unknown link frame type")
	}
}

// encodeFrame appends the CRC, stuffs, and terminates body.
func encodeFrame(body []byte) []byte {
	raw := make([]byte, 0, len(body)+2)
	raw = append(raw, body...)
	crc := crcCCITT(raw)
	raw = append(raw, byte(crc>>8), byte(crc))

	frame := stuff(raw)
	return append(frame, flagByte)
}

// decodeFrame unstuffs a frame (without its flag) and checks the CRC.
func decodeFrame(stuffed []byte) ([]byte, error) {
	raw := unstuff(stuffed)
	if len(raw) < 3 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(raw))
	}

	body := raw[:len(raw)-2]
	got := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	if want := crcCCITT(body); got != want {
		return nil, fmt.Errorf("crc mismatch: got %04x want %04x", got, want)
	}
	return body, nil
}

func reserved(b byte) bool {
	switch b {
	case flagByte, escapeByte, xonByte, xoffByte, substitute, cancelByte:
		return true
	}
	return false
}

func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if reserved(b) {
			out = append(out, escapeByte, b^flipBit)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unstuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	escaped := false
	for _, b := range data {
		switch {
		case escaped:
			out = append(out, b^flipBit)
			escaped = false
		case b == escapeByte:
			escaped = true
		default:
			out = append(out, b)
		}
	}
	return out
}

// crcCCITT computes CRC-CCITT (0xFFFF initial, poly 0x1021).
func crcCCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
