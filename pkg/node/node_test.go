package node

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/peerlobby/pkg/db"
	"github.com/urmzd/peerlobby/pkg/lobby"
)

func startNode(t *testing.T, cfg Config) *Node {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "node.db")
	}
	n, err := Start(context.Background(), cfg, lobby.Options{SettleDelay: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestStart_ProfileDefaults(t *testing.T) {
	n := startNode(t, Config{})

	assert.Equal(t, db.TransportNull, n.Transport)
	assert.Equal(t, "default", n.Lobby)
	assert.Equal(t, db.DefaultAPIAddress, n.Addr)
	assert.False(t, n.Facade.TransportConnected())
	assert.NotEmpty(t, n.Identity.ClientID)
}

func TestStart_OverridesWinOverProfile(t *testing.T) {
	n := startNode(t, Config{Lobby: "house", Addr: "127.0.0.1:9999"})

	assert.Equal(t, "house", n.Lobby)
	assert.Equal(t, "127.0.0.1:9999", n.Addr)
}

func TestStart_CloudOverSQLiteKeepsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.db")
	ctx := context.Background()

	first, err := Start(ctx, Config{DBPath: path, Transport: db.TransportCloud, Name: "TV"}, lobby.Options{SettleDelay: -1})
	require.NoError(t, err)
	assert.Equal(t, db.TransportCloud, first.Transport)
	assert.True(t, first.Facade.TransportConnected())
	assert.Equal(t, "TV", first.Identity.Name)
	id := first.Identity.ClientID
	require.NoError(t, first.Close())

	second, err := Start(ctx, Config{DBPath: path, Transport: db.TransportCloud, Name: "TV"}, lobby.Options{SettleDelay: -1})
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, id, second.Identity.ClientID)
}

func TestStart_UnknownTransportFallsBack(t *testing.T) {
	n := startNode(t, Config{Transport: "carrier-pigeon"})
	assert.Equal(t, db.TransportNull, n.Transport)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvTransport, "cloud")
	t.Setenv(EnvLobby, "house")
	t.Setenv(EnvSerialPort, AutoPort)

	cfg := LoadEnv()
	assert.Equal(t, "cloud", cfg.Transport)
	assert.Equal(t, "house", cfg.Lobby)
	assert.Equal(t, AutoPort, cfg.SerialPort)
}
