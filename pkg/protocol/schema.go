package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const envelopeKey Type = "_envelope"

// schemaDocs holds the JSON Schema for each message type. Optional fields
// stay optional so receivers can apply defaults.
var schemaDocs = map[Type]json.RawMessage{
	envelopeKey: json.RawMessage(`{
		"type": "object",
		"required": ["type"],
		"properties": {"type": {"type": "string", "minLength": 1}}
	}`),
	TypeDeviceInfo: json.RawMessage(`{
		"type": "object",
		"properties": {
			"role": {"type": "string"},
			"name": {"type": "string"},
			"id":   {"type": "string"}
		}
	}`),
	TypeCommand: json.RawMessage(`{
		"type": "object",
		"required": ["timestamp"],
		"properties": {
			"name":      {"type": "string"},
			"class":     {"type": "string"},
			"timestamp": {"type": "number"}
		}
	}`),
	TypeGameState: json.RawMessage(`{
		"type": "object",
		"required": ["state"],
		"properties": {
			"state": {
				"type": "object",
				"required": ["state"],
				"properties": {
					"state": {"type": "string", "enum": ["LOBBY", "RUNNING"]},
					"game":  {"type": "string"}
				}
			}
		}
	}`),
	TypeSettings: json.RawMessage(`{
		"type": "object",
		"properties": {
			"backToWhite": {"type": "boolean"},
			"duration":    {"type": "number", "minimum": 0}
		}
	}`),
}

// Validator validates decoded wire messages against the per-type schemas.
// Compiled schemas are cached by message type.
type Validator struct {
	mu    sync.RWMutex
	cache map[Type]*jsonschema.Schema
}

// NewValidator creates a new Validator with an empty cache.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[Type]*jsonschema.Schema),
	}
}

// Validate checks payload against the schema registered for t.
func (v *Validator) Validate(t Type, payload any) error {
	compiled, err := v.compile(t)
	if err != nil {
		return err
	}
	return compiled.Validate(payload)
}

func (v *Validator) compile(t Type) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if s, ok := v.cache[t]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	doc, ok := schemaDocs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := v.cache[t]; ok {
		return s, nil
	}

	var schemaMap any
	if err := json.Unmarshal(doc, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	url := string(t) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, schemaMap); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	v.cache[t] = compiled
	return compiled, nil
}
