package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformed indicates a payload is not a valid message
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType indicates a well-formed message with an unrecognized type
	ErrUnknownType = errors.New("unknown message type")
)

// Codec converts between typed messages and the JSON wire text.
type Codec struct {
	validator *Validator
}

// NewCodec creates a Codec with its own schema cache.
func NewCodec() *Codec {
	return &Codec{validator: NewValidator()}
}

// Encode serializes m with its "type" discriminant.
func (c *Codec) Encode(m Message) ([]byte, error) {
	var body any
	switch msg := m.(type) {
	case DeviceInfo:
		body = struct {
			Type Type `json:"type"`
			DeviceInfo
		}{TypeDeviceInfo, msg}
	case Command:
		body = struct {
			Type Type `json:"type"`
			Command
		}{TypeCommand, msg}
	case GameStateUpdate:
		body = struct {
			Type Type `json:"type"`
			GameStateUpdate
		}{TypeGameState, msg}
	case Settings:
		body = struct {
			Type Type `json:"type"`
			Settings
		}{TypeSettings, msg}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
	return json.Marshal(body)
}

// Decode parses wire text into a typed message. Non-JSON input, a missing
// "type", or a schema violation yield ErrMalformed; an unrecognized type
// yields ErrUnknownType.
func (c *Codec) Decode(data []byte) (Message, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := c.validator.Validate(envelopeKey, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	t := Type(raw.(map[string]any)["type"].(string))
	if _, ok := schemaDocs[t]; !ok || t == envelopeKey {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err := c.validator.Validate(t, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch t {
	case TypeDeviceInfo:
		var m DeviceInfo
		if err := unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeCommand:
		var wire struct {
			Name      string  `json:"name"`
			Class     string  `json:"class"`
			Timestamp float64 `json:"timestamp"`
		}
		if err := unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return Command{Name: wire.Name, Class: wire.Class, Timestamp: int64(math.Floor(wire.Timestamp))}, nil
	case TypeGameState:
		var m GameStateUpdate
		if err := unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeSettings:
		var m Settings
		if err := unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
