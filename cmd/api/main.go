package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/peerlobby/pkg/api"
	"github.com/urmzd/peerlobby/pkg/lobby"
	"github.com/urmzd/peerlobby/pkg/node"

	_ "github.com/urmzd/peerlobby/docs"
)

// @title           Peer Lobby API
// @version         1.0
// @description     HTTP and websocket facade over the peer device lobby

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	cfg := node.LoadEnv()

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to database file (default: ~/.config/peerlobby/peerlobby.db)")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Peer transport: radio, cloud or null (default: active profile)")
	flag.StringVar(&cfg.SerialPort, "port", cfg.SerialPort, "Radio modem serial port, or \"auto\"")
	flag.IntVar(&cfg.Baud, "baud", cfg.Baud, "Radio modem baud rate (default 115200)")
	flag.StringVar(&cfg.Lobby, "lobby", cfg.Lobby, "Lobby name for the cloud transport")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Device display name")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "API listen address (default: active profile)")
	flag.StringVar(&cfg.PostgresURL, "postgres", cfg.PostgresURL, "Postgres URL for a shared realtime store")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flag.Parse()

	node.SetupLogging(cfg.LogLevel)

	n, err := node.Start(context.Background(), cfg, lobby.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start lobby node")
	}

	router := api.NewRouter(n.Facade, n.Lobby)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		if err := n.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	log.Info().
		Str("address", n.Addr).
		Str("client_id", n.Identity.ClientID).
		Str("name", n.Identity.Name).
		Msg("Starting API server")

	if err := router.Run(n.Addr); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
