// Package identity provides the stable client identifier a device announces
// to its peers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Identity is the local device's self-description.
type Identity struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// ErrNotFound is returned by a Store with no saved identity.
var ErrNotFound = errors.New("identity not found")

// Store persists a client id across process restarts.
type Store interface {
	GetClientID(ctx context.Context) (string, error)
	SaveClientID(ctx context.Context, clientID string) error
}

// New generates a fresh identity. An empty name gets a derived default.
func New(name string) Identity {
	id := uuid.NewString()
	if name == "" {
		name = DefaultName(id)
	}
	return Identity{ClientID: id, Name: name}
}

// DefaultName derives a short human readable name from a client id.
func DefaultName(clientID string) string {
	short := strings.ReplaceAll(clientID, "-", "")
	if len(short) > 6 {
		short = short[:6]
	}
	return "Device-" + strings.ToUpper(short)
}

var (
	processOnce sync.Once
	process     Identity
)

// Process returns the identity for this process lifetime. The first call
// decides the name; later calls ignore theirs.
func Process(name string) Identity {
	processOnce.Do(func() {
		process = New(name)
		log.Info().Str("clientId", process.ClientID).Str("name", process.Name).Msg("Generated client identity")
	})
	return process
}

// LoadOrCreate returns the identity saved in store, generating and saving a
// new client id on first use.
func LoadOrCreate(ctx context.Context, store Store, name string) (Identity, error) {
	id, err := store.GetClientID(ctx)
	switch {
	case err == nil:
		if name == "" {
			name = DefaultName(id)
		}
		return Identity{ClientID: id, Name: name}, nil
	case errors.Is(err, ErrNotFound):
	default:
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}

	ident := New(name)
	if err := store.SaveClientID(ctx, ident.ClientID); err != nil {
		return Identity{}, fmt.Errorf("save identity: %w", err)
	}
	log.Info().Str("clientId", ident.ClientID).Msg("Created persistent client identity")
	return ident, nil
}
