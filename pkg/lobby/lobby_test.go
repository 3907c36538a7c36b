package lobby

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/identity"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

const waitFor = 2 * time.Second

// fakeTransport records every call and lets tests inject events.
type fakeTransport struct {
	device.EventHub

	mu       sync.Mutex
	calls    []string
	sent     map[string][][]byte
	failSend map[string]bool
	startErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][][]byte), failSend: make(map[string]bool)}
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) StartAdvertising(ctx context.Context, self device.Presence) error {
	f.record("advertise:" + self.Name)
	return f.startErr
}

func (f *fakeTransport) StartDiscovery(ctx context.Context, self device.Presence) error {
	f.record("discover:" + self.Name)
	return f.startErr
}

func (f *fakeTransport) StopAll(ctx context.Context) error {
	f.record("stop")
	return nil
}

func (f *fakeTransport) Connect(ctx context.Context, peerID string) error {
	f.record("connect:" + peerID)
	return nil
}

func (f *fakeTransport) Accept(ctx context.Context, peerID string) error {
	f.record("accept:" + peerID)
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, peerID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[peerID] {
		return fmt.Errorf("send to %s: %w", peerID, device.ErrNotConnected)
	}
	f.sent[peerID] = append(f.sent[peerID], payload)
	return nil
}

func (f *fakeTransport) IsConnected() bool { return true }
func (f *fakeTransport) Close()            {}

func (f *fakeTransport) hasCall(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.calls, call)
}

func (f *fakeTransport) sentTo(peerID string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent[peerID]...)
}

func (f *fakeTransport) emit(t device.EventType, peerID string, payload []byte) {
	f.Publish(device.Event{Type: t, PeerID: peerID, Payload: payload, Timestamp: time.Now()})
}

type denyPermissions struct{}

func (denyPermissions) Request(ctx context.Context, role device.Role) error {
	return fmt.Errorf("%w: nearby devices", device.ErrPermissionDenied)
}

// blockDisplay never grants the display role; it waits for cancellation.
type blockDisplay struct{}

func (blockDisplay) Request(ctx context.Context, role device.Role) error {
	if role == device.RoleDisplay {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func newTestLobby(t *testing.T, name string, opts Options) (*Lobby, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	if opts.SettleDelay == 0 {
		opts.SettleDelay = -1
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = 10 * time.Millisecond
	}
	l := New(identity.Identity{ClientID: "client-" + name, Name: name}, ft, ft, opts)
	t.Cleanup(l.Close)
	return l, ft
}

func activate(t *testing.T, l *Lobby, role device.Role) {
	t.Helper()
	l.JoinLobby()
	l.SetMyRole(role)
	require.Eventually(t, func() bool { return !l.State().IsLoading }, waitFor, 5*time.Millisecond)
}

func connectPeers(t *testing.T, l *Lobby, ft *fakeTransport, peers ...string) {
	t.Helper()
	for _, p := range peers {
		ft.emit(device.EventConnected, p, nil)
	}
	require.Eventually(t, func() bool { return len(l.State().Devices) == len(peers) }, waitFor, 5*time.Millisecond)
}

func TestLobby_InitialState(t *testing.T) {
	l, _ := newTestLobby(t, "tv", Options{})

	s := l.State()
	assert.Equal(t, ModeNone, s.RemoteMode)
	assert.Equal(t, device.RoleIdle, s.MyRole)
	assert.Equal(t, protocol.GameState{State: protocol.PhaseLobby}, s.GameState)
	assert.Equal(t, BackToWhite{Enabled: false, Duration: 2}, s.BackToWhite)
	assert.Empty(t, s.Devices)
	assert.Nil(t, s.LastCommand)
	assert.Nil(t, s.Error)
	assert.False(t, s.IsLoading)
}

func TestLobby_RoleSelectsTransportActivity(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})

	l.JoinLobby()
	assert.Equal(t, ModeLobby, l.State().RemoteMode)
	assert.False(t, l.State().IsLoading, "lobby without a role starts nothing")

	l.SetMyRole(device.RoleDisplay)
	require.Eventually(t, func() bool { return ft.hasCall("advertise:tv") }, waitFor, 5*time.Millisecond)

	l.SetMyRole(device.RoleController)
	require.Eventually(t, func() bool { return ft.hasCall("discover:tv") }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !l.State().IsLoading }, waitFor, 5*time.Millisecond)
	assert.Nil(t, l.State().Error)
}

func TestLobby_JoinIsNoopWhenActive(t *testing.T) {
	l, _ := newTestLobby(t, "tv", Options{})

	l.SetRemoteMode(ModeController)
	l.JoinLobby()
	assert.Equal(t, ModeController, l.State().RemoteMode)
}

func TestLobby_TransitionClearsDevices(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "a", "b")

	l.SetMyRole(device.RoleDisplay)
	assert.Empty(t, l.State().Devices)

	connectPeers(t, l, ft, "c")
	l.SetRemoteMode(ModeDisplay)
	assert.Empty(t, l.State().Devices)
}

func TestLobby_SameKeyKeepsDevices(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "a")

	l.SetMyRole(device.RoleController)
	l.JoinLobby()
	assert.Len(t, l.State().Devices, 1)
}

func TestLobby_LeaveWhileController(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	l.SetRemoteMode(ModeController)
	l.SetMyRole(device.RoleController)
	require.Eventually(t, func() bool { return !l.State().IsLoading }, waitFor, 5*time.Millisecond)
	connectPeers(t, l, ft, "a", "b", "c")

	l.LeaveLobby()

	s := l.State()
	assert.Equal(t, ModeNone, s.RemoteMode)
	assert.Equal(t, device.RoleIdle, s.MyRole)
	assert.Empty(t, s.Devices)
	assert.True(t, ft.hasCall("stop"))

	l.LeaveLobby()
	assert.Equal(t, ModeNone, l.State().RemoteMode)
}

func TestLobby_ConnectedSendsDeviceInfo(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})
	activate(t, l, device.RoleDisplay)

	ft.emit(device.EventConnected, "peer-1", nil)

	require.Eventually(t, func() bool { return len(ft.sentTo("peer-1")) == 1 }, waitFor, 5*time.Millisecond)
	msg, err := protocol.NewCodec().Decode(ft.sentTo("peer-1")[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.DeviceInfo{Role: device.RoleDisplay, Name: "tv", ID: "client-tv"}, msg)

	d := l.State().Devices[0]
	assert.Equal(t, "peer-1", d.ID)
	assert.Equal(t, device.RoleIdle, d.Role)
}

func TestLobby_HandshakeUpdatesRole(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "peer-1")

	ft.emit(device.EventText, "peer-1", []byte(`{"type":"device_info","role":"display","name":"TV","id":"c-1"}`))

	require.Eventually(t, func() bool {
		d := l.State().Devices
		return len(d) == 1 && d[0].Role == device.RoleDisplay
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "c-1", l.State().Devices[0].ClientID)

	ft.emit(device.EventDisconnected, "peer-1", nil)
	require.Eventually(t, func() bool { return len(l.State().Devices) == 0 }, waitFor, 5*time.Millisecond)
}

func TestLobby_PeerFoundQueuedForController(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)

	ft.emit(device.EventPeerFound, "tv-1", nil)
	ft.emit(device.EventPeerFound, "tv-2", nil)

	require.Eventually(t, func() bool {
		return ft.hasCall("connect:tv-1") && ft.hasCall("connect:tv-2")
	}, waitFor, 5*time.Millisecond)
}

func TestLobby_DisplayIgnoresPeerFoundButAcceptsInvitations(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})
	activate(t, l, device.RoleDisplay)

	ft.emit(device.EventPeerFound, "remote-1", nil)
	ft.emit(device.EventInvitation, "remote-1", nil)

	require.Eventually(t, func() bool { return ft.hasCall("accept:remote-1") }, waitFor, 5*time.Millisecond)
	assert.False(t, ft.hasCall("connect:remote-1"))
}

func TestLobby_EventsIgnoredWhileInactive(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})
	l.JoinLobby()

	ft.emit(device.EventConnected, "peer-1", nil)
	l.ClearError() // round-trip through the loop
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, l.State().Devices)
}

func TestLobby_BroadcastSurvivesFailedPeer(t *testing.T) {
	ctrl, ctrlT := newTestLobby(t, "remote", Options{})
	activate(t, ctrl, device.RoleController)
	connectPeers(t, ctrl, ctrlT, "d1", "d2")
	require.Eventually(t, func() bool {
		return len(ctrlT.sentTo("d1")) == 1 && len(ctrlT.sentTo("d2")) == 1
	}, waitFor, 5*time.Millisecond)
	ctrlT.mu.Lock()
	ctrlT.failSend["d1"] = true
	ctrlT.mu.Unlock()

	sent := ctrl.SendCommand("Red", "bg-red-500", "")

	// d2 gets device_info on connect, then the command.
	require.Eventually(t, func() bool { return len(ctrlT.sentTo("d2")) == 2 }, waitFor, 5*time.Millisecond)
	assert.Len(t, ctrlT.sentTo("d1"), 1)

	display, displayT := newTestLobby(t, "tv", Options{})
	activate(t, display, device.RoleDisplay)
	displayT.emit(device.EventText, "remote", ctrlT.sentTo("d2")[1])

	require.Eventually(t, func() bool { return display.State().LastCommand != nil }, waitFor, 5*time.Millisecond)
	assert.Equal(t, protocol.Command{Name: "Red", Class: "bg-red-500", Timestamp: sent.Timestamp}, *display.State().LastCommand)
}

func TestLobby_UnicastCommand(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "d1", "d2")

	l.SendCommand("Blue", "bg-blue-500", "d2")

	require.Eventually(t, func() bool { return len(ft.sentTo("d2")) == 2 }, waitFor, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ft.sentTo("d1"), 1)
}

func TestLobby_DisplayAppliesInboundSequence(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})
	activate(t, l, device.RoleDisplay)

	ft.emit(device.EventText, "remote", []byte(`{"type":"settings","backToWhite":true,"duration":3}`))
	ft.emit(device.EventText, "remote", []byte(`{"type":"game_state","state":{"state":"RUNNING","game":"colors"}}`))
	ft.emit(device.EventText, "remote", []byte(fmt.Sprintf(`{"type":"command","name":"Blue","class":"bg-blue-500","timestamp":%d}`, time.Now().UnixMilli())))

	require.Eventually(t, func() bool { return l.State().LastCommand != nil }, waitFor, 5*time.Millisecond)
	s := l.State()
	assert.Equal(t, BackToWhite{Enabled: true, Duration: 3}, s.BackToWhite)
	assert.Equal(t, protocol.GameState{State: protocol.PhaseRunning, Game: protocol.GameColors}, s.GameState)
	assert.Equal(t, "Blue", s.LastCommand.Name)
}

func TestLobby_StartStopGameBroadcasts(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "d1")

	l.StartGame(protocol.GameChainCalc)
	assert.Equal(t, protocol.GameState{State: protocol.PhaseRunning, Game: protocol.GameChainCalc}, l.State().GameState)

	l.StopGame()
	assert.Equal(t, protocol.GameState{State: protocol.PhaseLobby}, l.State().GameState)

	require.Eventually(t, func() bool { return len(ft.sentTo("d1")) == 3 }, waitFor, 5*time.Millisecond)
	last, err := protocol.NewCodec().Decode(ft.sentTo("d1")[2])
	require.NoError(t, err)
	assert.Equal(t, protocol.GameStateUpdate{State: protocol.GameState{State: protocol.PhaseLobby}}, last)
}

func TestLobby_SendSettings(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	activate(t, l, device.RoleController)
	connectPeers(t, l, ft, "d1")

	l.SendSettings(true, 4)

	require.Eventually(t, func() bool { return len(ft.sentTo("d1")) == 2 }, waitFor, 5*time.Millisecond)
	assert.JSONEq(t, `{"type":"settings","backToWhite":true,"duration":4}`, string(ft.sentTo("d1")[1]))
}

func TestLobby_PermissionDenied(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{Permissions: denyPermissions{}})

	l.JoinLobby()
	l.SetMyRole(device.RoleDisplay)

	require.Eventually(t, func() bool { return l.State().Error != nil }, waitFor, 5*time.Millisecond)
	s := l.State()
	assert.Equal(t, CodePermissionDenied, s.Error.Code)
	assert.False(t, s.IsLoading)
	assert.False(t, ft.hasCall("advertise:tv"))

	l.ClearError()
	assert.Nil(t, l.State().Error)
	assert.Equal(t, device.RoleDisplay, l.State().MyRole, "error does not halt the machine")
}

func TestLobby_StartFailed(t *testing.T) {
	l, ft := newTestLobby(t, "remote", Options{})
	ft.startErr = errors.New("radio unavailable")

	l.JoinLobby()
	l.SetMyRole(device.RoleController)

	require.Eventually(t, func() bool { return l.State().Error != nil }, waitFor, 5*time.Millisecond)
	assert.Equal(t, CodeStartFailed, l.State().Error.Code)
	assert.Contains(t, l.State().Error.Message, "radio unavailable")
}

func TestLobby_SupersededStartIsDropped(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{Permissions: blockDisplay{}})

	l.JoinLobby()
	l.SetMyRole(device.RoleDisplay)
	assert.True(t, l.State().IsLoading)

	l.SetMyRole(device.RoleController)
	require.Eventually(t, func() bool { return ft.hasCall("discover:tv") }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !l.State().IsLoading }, waitFor, 5*time.Millisecond)

	assert.Nil(t, l.State().Error)
	assert.False(t, ft.hasCall("advertise:tv"))
}

func TestLobby_SettleDelay(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{SettleDelay: 80 * time.Millisecond})

	begin := time.Now()
	l.JoinLobby()
	l.SetMyRole(device.RoleDisplay)
	require.Eventually(t, func() bool { return ft.hasCall("advertise:tv") }, waitFor, 2*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(begin), 80*time.Millisecond)
}

func TestLobby_Subscribe(t *testing.T) {
	l, _ := newTestLobby(t, "tv", Options{})
	ch := l.Subscribe()

	l.JoinLobby()

	select {
	case snap := <-ch:
		assert.Equal(t, ModeLobby, snap.RemoteMode)
	case <-time.After(waitFor):
		t.Fatal("no snapshot published")
	}

	l.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestLobby_CloseIsIdempotent(t *testing.T) {
	l, ft := newTestLobby(t, "tv", Options{})
	ch := l.Subscribe()
	l.Close()
	l.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.True(t, ft.hasCall("stop"))

	l.JoinLobby()
	assert.Equal(t, ModeNone, l.State().RemoteMode)
}

func TestFacade_Validation(t *testing.T) {
	ft := newFakeTransport()
	f := NewFacade(identity.Identity{ClientID: "c", Name: "n"}, ft, Options{SettleDelay: -1})
	defer f.Close()

	assert.ErrorIs(t, f.SetMyRole("spectator"), device.ErrValidation)
	assert.ErrorIs(t, f.SetRemoteMode("party"), device.ErrValidation)
	assert.ErrorIs(t, f.StartGame("chess"), device.ErrValidation)
	assert.ErrorIs(t, f.SendSettings(true, -1), device.ErrValidation)
	_, err := f.SendCommand("", "bg-red-500", "")
	assert.ErrorIs(t, err, device.ErrValidation)

	require.NoError(t, f.StartGame(protocol.GameColors))
	assert.Equal(t, protocol.PhaseRunning, f.State().GameState.State)
	assert.Equal(t, "c", f.Identity().ClientID)
	assert.True(t, f.TransportConnected())
}
