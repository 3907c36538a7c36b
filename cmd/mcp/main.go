package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/peerlobby/pkg/lobby"
	lobbymcp "github.com/urmzd/peerlobby/pkg/mcp"
	"github.com/urmzd/peerlobby/pkg/node"
)

func main() {
	cfg := node.LoadEnv()

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to database file (default: ~/.config/peerlobby/peerlobby.db)")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Peer transport: radio, cloud or null (default: active profile)")
	flag.StringVar(&cfg.SerialPort, "port", cfg.SerialPort, "Radio modem serial port, or \"auto\"")
	flag.IntVar(&cfg.Baud, "baud", cfg.Baud, "Radio modem baud rate (default 115200)")
	flag.StringVar(&cfg.Lobby, "lobby", cfg.Lobby, "Lobby name for the cloud transport")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Device display name")
	flag.StringVar(&cfg.PostgresURL, "postgres", cfg.PostgresURL, "Postgres URL for a shared realtime store")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flag.Parse()

	// Logging must go to stderr; stdout is the MCP transport
	node.SetupLogging(cfg.LogLevel)

	n, err := node.Start(context.Background(), cfg, lobby.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start lobby node")
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	mcpServer := lobbymcp.NewServer(n.Facade, n.Lobby)

	log.Info().Str("client_id", n.Identity.ClientID).Msg("Starting MCP server on stdio")

	if err := mcpServer.ServeStdio(); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
	}
}
