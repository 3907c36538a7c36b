// Package node assembles a lobby node from flags, environment and the
// SQLite profile: it opens the config database, resolves the device
// identity, selects a peer transport and wires the lobby facade.
package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/cloud"
	"github.com/urmzd/peerlobby/pkg/db"
	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/identity"
	"github.com/urmzd/peerlobby/pkg/lobby"
	"github.com/urmzd/peerlobby/pkg/radio"
)

// Environment variables read by LoadEnv.
const (
	EnvDB          = "PEERLOBBY_DB"
	EnvTransport   = "PEERLOBBY_TRANSPORT"
	EnvSerialPort  = "PEERLOBBY_SERIAL_PORT"
	EnvLobby       = "PEERLOBBY_LOBBY"
	EnvName        = "PEERLOBBY_NAME"
	EnvAddr        = "PEERLOBBY_ADDR"
	EnvPostgresURL = "PEERLOBBY_POSTGRES_URL"
	EnvLogLevel    = "PEERLOBBY_LOG_LEVEL"
)

// AutoPort asks for the first serial port the OS reports.
const AutoPort = "auto"

// tombstoneRetention bounds how long deleted realtime records are kept.
const tombstoneRetention = 24 * time.Hour

// Config is the merged node configuration. Empty fields fall back to the
// active profile and then to built-in defaults.
type Config struct {
	DBPath      string
	Transport   string
	SerialPort  string
	Baud        int
	Lobby       string
	Name        string
	Addr        string
	PostgresURL string
	LogLevel    string
}

// LoadEnv reads an optional .env file from the working directory and returns
// the configuration held in the environment.
func LoadEnv() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}
	return Config{
		DBPath:      os.Getenv(EnvDB),
		Transport:   os.Getenv(EnvTransport),
		SerialPort:  os.Getenv(EnvSerialPort),
		Lobby:       os.Getenv(EnvLobby),
		Name:        os.Getenv(EnvName),
		Addr:        os.Getenv(EnvAddr),
		PostgresURL: os.Getenv(EnvPostgresURL),
		LogLevel:    os.Getenv(EnvLogLevel),
	}
}

// SetupLogging points the global logger at stderr. Stdout stays free for
// the MCP stdio transport.
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Node is a running lobby node.
type Node struct {
	DB        *db.DB
	Facade    *lobby.Facade
	Identity  identity.Identity
	Lobby     string
	Transport string
	Addr      string
}

// Start opens the config database and wires the lobby facade over the
// configured transport. A transport that fails to open degrades to the null
// transport so the facade still serves state.
func Start(ctx context.Context, cfg Config, opts lobby.Options) (*Node, error) {
	database, err := openDatabase(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	active, err := database.ActiveConfig(ctx)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg = merge(cfg, active)

	log.Info().
		Str("profile", active.Profile.Name).
		Str("transport", cfg.Transport).
		Str("lobby", cfg.Lobby).
		Str("api_address", cfg.Addr).
		Msg("Configuration loaded")

	n := &Node{DB: database, Lobby: cfg.Lobby, Addr: cfg.Addr}

	self, err := resolveIdentity(ctx, database, active.Profile.ID, cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	n.Identity = self

	transport, kind := n.openTransport(ctx, cfg)
	n.Transport = kind
	n.Facade = lobby.NewFacade(self, transport, opts)
	return n, nil
}

func openDatabase(ctx context.Context, path string) (*db.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("check bootstrap status: %w", err)
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
	}
	return database, nil
}

// merge fills unset fields from the active profile.
func merge(cfg Config, active *db.Config) Config {
	if cfg.Transport == "" {
		cfg.Transport = active.TransportKind()
	}
	if cfg.Lobby == "" {
		cfg.Lobby = active.Lobby()
	}
	if cfg.Name == "" {
		cfg.Name = active.Profile.DeviceName
	}
	if cfg.SerialPort == "" {
		cfg.SerialPort = active.Profile.SerialPort
	}
	if cfg.Addr == "" {
		cfg.Addr = active.APIAddress()
	}
	return cfg
}

// resolveIdentity keeps a stable client id for the cloud transport, whose
// presence records outlive the process. Other transports get a fresh id per
// process.
func resolveIdentity(ctx context.Context, database *db.DB, profileID int64, cfg Config) (identity.Identity, error) {
	if cfg.Transport != db.TransportCloud {
		return identity.Process(cfg.Name), nil
	}
	self, err := identity.LoadOrCreate(ctx, database.Identities(profileID), cfg.Name)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return self, nil
}

func (n *Node) openTransport(ctx context.Context, cfg Config) (device.Transport, string) {
	switch cfg.Transport {
	case db.TransportRadio:
		port := cfg.SerialPort
		if port == "" || port == AutoPort {
			detected, err := radio.DetectPort()
			if err != nil {
				log.Warn().Err(err).Msg("No radio modem found, using null transport")
				return device.NewNullTransport(), db.TransportNull
			}
			port = detected
		}
		t, err := radio.Open(port, cfg.Baud)
		if err != nil {
			log.Warn().Err(err).Str("port", port).Msg("Radio modem unavailable, using null transport")
			return device.NewNullTransport(), db.TransportNull
		}
		return t, db.TransportRadio

	case db.TransportCloud:
		store, err := n.openStore(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Realtime store unavailable, using null transport")
			return device.NewNullTransport(), db.TransportNull
		}
		return cloud.NewTransport(store, cloud.Options{Lobby: cfg.Lobby}), db.TransportCloud

	case db.TransportNull:
	default:
		log.Warn().Str("transport", cfg.Transport).Msg("Unknown transport, using null transport")
	}
	return device.NewNullTransport(), db.TransportNull
}

// openStore prefers a shared Postgres database and falls back to the local
// SQLite realtime table, which only reaches peers sharing the same file.
func (n *Node) openStore(ctx context.Context, cfg Config) (cloud.Store, error) {
	if cfg.PostgresURL != "" {
		return cloud.OpenPostgres(ctx, cfg.PostgresURL)
	}

	store := n.DB.Realtime(db.DefaultPollInterval)
	removed, err := store.Compact(ctx, time.Now().Add(-tombstoneRetention))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to compact realtime records")
	} else if removed > 0 {
		log.Debug().Int64("removed", removed).Msg("Compacted realtime records")
	}
	return store, nil
}

// Close stops the lobby and its transport, then closes the database.
func (n *Node) Close() error {
	if n.Facade != nil {
		n.Facade.Close()
	}
	return n.DB.Close()
}
