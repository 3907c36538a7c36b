package radio

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the modem firmware's UART configuration.
const DefaultBaudRate = 115200

// SerialPort wraps the byte stream to the radio modem. Writes are
// serialized; reads come from a single reader goroutine.
type SerialPort struct {
	port io.ReadWriteCloser
	mu   sync.Mutex
}

// OpenSerial opens the serial port at the given baud rate, 8N1. A zero
// baud rate selects DefaultBaudRate.
func OpenSerial(portPath string, baud int) (*SerialPort, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portPath, err)
	}

	// The modem holds its transmitter until RTS is asserted.
	if err := port.SetRTS(true); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set RTS: %w", err)
	}

	log.Info().Str("port", portPath).Int("baud", baud).Msg("Serial port opened")

	return &SerialPort{port: port}, nil
}

// NewSerialPort wraps an already open stream, such as one end of a pipe.
func NewSerialPort(rwc io.ReadWriteCloser) *SerialPort {
	return &SerialPort{port: rwc}
}

// DetectPort returns the first serial port the OS reports.
func DetectPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports found")
	}
	return ports[0], nil
}

// Write sends raw bytes to the modem.
func (s *SerialPort) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(data)
}

// Read reads raw bytes from the modem.
func (s *SerialPort) Read(buf []byte) (int, error) {
	return s.port.Read(buf)
}

// Close closes the port.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

// ReadByte reads a single byte.
func (s *SerialPort) ReadByte() (byte, error) {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(s.port, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}
