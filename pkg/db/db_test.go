package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urmzd/peerlobby/pkg/cloud"
	"github.com/urmzd/peerlobby/pkg/identity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, currentSchemaVersion)
	}
}

func TestBootstrap_CreatesDefaultProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	profiles, err := db.Profiles().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(profiles))
	}

	cfg, err := db.ActiveConfig(ctx)
	if err != nil {
		t.Fatalf("active config: %v", err)
	}
	if got := cfg.APIAddress(); got != "0.0.0.0:8080" {
		t.Errorf("APIAddress = %q", got)
	}
	if got := cfg.TransportKind(); got != TransportNull {
		t.Errorf("TransportKind = %q", got)
	}
	if got := cfg.Lobby(); got != "default" {
		t.Errorf("Lobby = %q", got)
	}
}

func TestActiveConfig_NoProfile(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.ActiveConfig(context.Background()); !errors.Is(err, ErrNoActiveProfile) {
		t.Errorf("err = %v, want ErrNoActiveProfile", err)
	}
}

func TestProfiles_CRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := db.Profiles()

	living := &Profile{Name: "living-room", DeviceName: "TV", Transport: TransportCloud, Lobby: "house"}
	if err := store.Create(ctx, living); err != nil {
		t.Fatalf("create: %v", err)
	}
	remote := &Profile{Name: "remote", Transport: TransportRadio, SerialPort: "/dev/ttyUSB0"}
	if err := store.Create(ctx, remote); err != nil {
		t.Fatalf("create: %v", err)
	}
	if remote.Lobby != "default" {
		t.Errorf("default lobby = %q", remote.Lobby)
	}

	if err := store.Create(ctx, &Profile{Name: "bad", Transport: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown transport")
	}

	if err := store.SetActive(ctx, remote.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	active, err := store.GetActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if active.Name != "remote" || active.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("active = %+v", active)
	}

	living.DeviceName = "Big TV"
	if err := store.Update(ctx, living); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetByName(ctx, "living-room")
	if err != nil {
		t.Fatal(err)
	}
	if got.DeviceName != "Big TV" || got.Lobby != "house" {
		t.Errorf("updated = %+v", got)
	}

	if err := store.Delete(ctx, living.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, living.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("get deleted: %v", err)
	}
	if err := store.SetActive(ctx, 9999); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("set active missing: %v", err)
	}
}

func TestAPIServers_Upsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := &Profile{Name: "p"}
	if err := db.Profiles().Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	servers := db.APIServers()
	if err := servers.Upsert(ctx, &APIServer{ProfileID: p.ID, Host: "127.0.0.1", Port: 9000}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := servers.Upsert(ctx, &APIServer{ProfileID: p.ID, Host: "::1", Port: 9001}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	a, err := servers.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Address(); got != "[::1]:9001" {
		t.Errorf("Address = %q", got)
	}

	if err := servers.Upsert(ctx, &APIServer{ProfileID: p.ID, Port: 0}); err == nil {
		t.Error("expected invalid port error")
	}
	if err := servers.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := servers.Delete(ctx, p.ID); !errors.Is(err, ErrAPIServerNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestIdentities_Persist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	cfg, err := db.ActiveConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}

	first, err := identity.LoadOrCreate(ctx, db.Identities(cfg.Profile.ID), "TV")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := identity.LoadOrCreate(ctx, db.Identities(cfg.Profile.ID), "TV")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first.ClientID != second.ClientID {
		t.Errorf("client id changed: %s -> %s", first.ClientID, second.ClientID)
	}
}

func recvChange(t *testing.T, ch <-chan cloud.Change) cloud.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return cloud.Change{}
	}
}

func TestRealtime_SetListRemove(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rt := db.Realtime(10 * time.Millisecond)
	defer rt.Close()

	if err := rt.Set(ctx, "lobbies/a/devices/1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := rt.Set(ctx, "lobbies/b/devices/2", []byte(`{"id":"2"}`)); err != nil {
		t.Fatal(err)
	}

	recs, err := rt.List(ctx, "lobbies/a/")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Path != "lobbies/a/devices/1" {
		t.Fatalf("list = %+v", recs)
	}

	if err := rt.Remove(ctx, "lobbies/a/devices/1"); err != nil {
		t.Fatal(err)
	}
	recs, _ = rt.List(ctx, "lobbies/a/")
	if len(recs) != 0 {
		t.Errorf("tombstone listed: %+v", recs)
	}
}

func TestRealtime_Watch(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := db.Realtime(10 * time.Millisecond)
	reader := db.Realtime(10 * time.Millisecond)
	defer reader.Close()

	if err := writer.Set(ctx, "p/old", []byte("x")); err != nil {
		t.Fatal(err)
	}

	changes, err := reader.Watch(ctx, "p/")
	if err != nil {
		t.Fatal(err)
	}
	if c := recvChange(t, changes); c.Kind != cloud.ChangePut || c.Path != "p/old" {
		t.Errorf("replay = %+v", c)
	}

	if err := writer.Set(ctx, "p/new", []byte("y")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Set(ctx, "q/ignored", []byte("z")); err != nil {
		t.Fatal(err)
	}
	c := recvChange(t, changes)
	if c.Kind != cloud.ChangePut || c.Path != "p/new" || string(c.Value) != "y" {
		t.Errorf("put = %+v", c)
	}

	if err := writer.OnDisconnectRemove(ctx, "p/new"); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	c = recvChange(t, changes)
	if c.Kind != cloud.ChangeDelete || c.Path != "p/new" {
		t.Errorf("delete = %+v", c)
	}
	if err := writer.Set(ctx, "p/x", nil); !errors.Is(err, cloud.ErrStoreClosed) {
		t.Errorf("set after close: %v", err)
	}
}

func TestRealtime_CompactKeepsNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rt := db.Realtime(0)

	for _, p := range []string{"a", "b"} {
		if err := rt.Set(ctx, p, []byte(p)); err != nil {
			t.Fatal(err)
		}
		if err := rt.Remove(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	n, err := rt.Compact(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("compacted %d rows, want 1", n)
	}
}

func TestRealtime_DrivesCloudTransport(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tv := cloud.NewTransport(db.Realtime(10*time.Millisecond), cloud.Options{Lobby: "house"})
	remote := cloud.NewTransport(db.Realtime(10*time.Millisecond), cloud.Options{Lobby: "house"})
	defer tv.Close()
	defer remote.Close()

	events := remote.Subscribe()
	if err := tv.StartAdvertising(ctx, devicePresence("tv-1", "TV", "display")); err != nil {
		t.Fatal(err)
	}
	if err := remote.StartDiscovery(ctx, devicePresence("remote-1", "Remote", "controller")); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-events:
		if evt.PeerID != "tv-1" {
			t.Errorf("found %q", evt.PeerID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("display not discovered")
	}
}

func TestTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE scratch (v INTEGER)`); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO scratch (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want %v", err, boom)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scratch`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rows after rollback = %d, want 0", n)
	}

	if err := db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO scratch (v) VALUES (2)`)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scratch`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows after commit = %d, want 1", n)
	}
}

func TestOpen_ResolvesPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))

	db, err := Open("~/lobby/state.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = db.Close()
	if want := filepath.Join(home, "lobby", "state.db"); db.Path() != want {
		t.Errorf("Path() = %q, want %q", db.Path(), want)
	}

	db, err = Open("")
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	_ = db.Close()
	if want := filepath.Join(home, "config", "peerlobby", "peerlobby.db"); db.Path() != want {
		t.Errorf("default Path() = %q, want %q", db.Path(), want)
	}
}

func TestDSN_Pragmas(t *testing.T) {
	got := dsn("/tmp/x.db")
	for _, want := range []string{"_txlock=immediate", "_pragma=journal_mode(WAL)", "_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn %q missing %q", got, want)
		}
	}
}
