package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// DefaultAPIAddress is used when a profile has no API server row.
const DefaultAPIAddress = "0.0.0.0:8080"

// Config is the runtime configuration stored for the active profile.
type Config struct {
	Profile   *Profile
	APIServer *APIServer
}

// APIAddress returns the API server listen address.
func (c *Config) APIAddress() string {
	if c.APIServer == nil {
		return DefaultAPIAddress
	}
	return c.APIServer.Address()
}

// TransportKind returns the profile's transport, defaulting to null.
func (c *Config) TransportKind() string {
	if c.Profile == nil || c.Profile.Transport == "" {
		return TransportNull
	}
	return c.Profile.Transport
}

// Lobby returns the lobby name the profile joins.
func (c *Config) Lobby() string {
	if c.Profile == nil || c.Profile.Lobby == "" {
		return "default"
	}
	return c.Profile.Lobby
}

// ActiveConfig loads the complete configuration for the active profile.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoActiveProfile
		}
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	config := &Config{Profile: profile}

	apiServer, err := db.APIServers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrAPIServerNotFound) {
		return nil, fmt.Errorf("failed to get API server config: %w", err)
	}
	config.APIServer = apiServer

	return config, nil
}
