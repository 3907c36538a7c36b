// Package lobby implements the peer lobby: the state machine that drives a
// transport through advertise/discover cycles, the admission queue that
// paces outgoing connections, and the dispatcher applying inbound messages.
package lobby

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/identity"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

const (
	// DefaultSettleDelay lets the transport release prior state before a restart.
	DefaultSettleDelay = 500 * time.Millisecond

	stopTimeout   = 5 * time.Second
	outboxSize    = 64
	snapshotDepth = 16
)

// Options tunes timing and collaborators. Zero values select defaults; a
// negative SettleDelay disables the delay.
type Options struct {
	Cooldown         time.Duration
	SettleDelay      time.Duration
	CommandStaleness time.Duration
	Permissions      device.Permissions
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	} else if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.CommandStaleness <= 0 {
		o.CommandStaleness = DefaultCommandStaleness
	}
	if o.Permissions == nil {
		o.Permissions = device.AllowAll{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type transitionKey struct {
	mode Mode
	role device.Role
}

func (k transitionKey) active() bool {
	return k.mode != ModeNone && k.role != device.RoleIdle
}

// Messages handled by the run loop.
type msg interface{ lobbyMsg() }

type (
	joinLobby     struct{}
	leaveLobby    struct{}
	setRole       struct{ role device.Role }
	setRemoteMode struct{ mode Mode }
	startGame     struct{ game string }
	stopGame      struct{}
	sendCommand   struct {
		name, class, target string
		result              *protocol.Command
	}
	sendSettings struct {
		enabled  bool
		duration float64
	}
	clearError struct{}
	getState   struct{ result *Snapshot }
	startDone  struct {
		gen uint64
		err error
	}
)

func (joinLobby) lobbyMsg()     {}
func (leaveLobby) lobbyMsg()    {}
func (setRole) lobbyMsg()       {}
func (setRemoteMode) lobbyMsg() {}
func (startGame) lobbyMsg()     {}
func (stopGame) lobbyMsg()      {}
func (sendCommand) lobbyMsg()   {}
func (sendSettings) lobbyMsg()  {}
func (clearError) lobbyMsg()    {}
func (getState) lobbyMsg()      {}
func (startDone) lobbyMsg()     {}

type envelope struct {
	msg  msg
	done chan struct{}
}

type outbound struct {
	peers   []string
	kind    protocol.Type
	payload []byte
}

// Lobby owns the session state. Every mutation runs on a single goroutine;
// public methods post a message and wait for it to be applied.
type Lobby struct {
	self      identity.Identity
	transport device.Transport
	events    device.EventSubscriber
	eventCh   chan device.Event
	codec     *protocol.Codec
	dispatch  *Dispatcher
	queue     *AdmissionQueue
	opts      Options

	inbox     chan envelope
	outbox    chan outbound
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// startMu is held for the duration of a start sequence so a stop
	// never overlaps a half-finished start.
	startMu     sync.Mutex
	startCancel context.CancelFunc

	// Owned by the run loop.
	session *Session
	applied transitionKey
	gen     uint64
	loading bool
	lastErr *Error
	dirty   bool

	subscribers   map[chan Snapshot]struct{}
	subscribersMu sync.Mutex
}

// New creates a Lobby in the (none, idle) state and starts its loop.
// events may be nil when the transport never reports anything.
func New(self identity.Identity, transport device.Transport, events device.EventSubscriber, opts Options) *Lobby {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	codec := protocol.NewCodec()

	l := &Lobby{
		self:        self,
		transport:   transport,
		events:      events,
		codec:       codec,
		dispatch:    NewDispatcher(codec, opts.CommandStaleness, opts.Now),
		queue:       NewAdmissionQueue(transport.Connect, opts.Cooldown),
		opts:        opts,
		inbox:       make(chan envelope),
		outbox:      make(chan outbound, outboxSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		session:     NewSession(),
		applied:     transitionKey{mode: ModeNone, role: device.RoleIdle},
		subscribers: make(map[chan Snapshot]struct{}),
	}
	if events != nil {
		l.eventCh = events.Subscribe()
	}

	go l.run()
	go l.sender()
	return l
}

// JoinLobby enters the lobby. No-op if already in a non-none mode.
func (l *Lobby) JoinLobby() { l.call(joinLobby{}) }

// LeaveLobby resets to (none, idle) and releases the transport. Idempotent.
func (l *Lobby) LeaveLobby() { l.call(leaveLobby{}) }

// SetMyRole changes the local role, restarting transport activity if needed.
func (l *Lobby) SetMyRole(role device.Role) { l.call(setRole{role: role}) }

// SetRemoteMode changes the remote mode, restarting transport activity if needed.
func (l *Lobby) SetRemoteMode(mode Mode) { l.call(setRemoteMode{mode: mode}) }

// StartGame marks game as running locally and broadcasts the new state.
func (l *Lobby) StartGame(game string) { l.call(startGame{game: game}) }

// StopGame returns to the lobby phase locally and broadcasts the new state.
func (l *Lobby) StopGame() { l.call(stopGame{}) }

// SendCommand stamps and sends a command to targetID, or to every known
// peer when targetID is empty. It returns the command as sent.
func (l *Lobby) SendCommand(name, class, targetID string) protocol.Command {
	var out protocol.Command
	l.call(sendCommand{name: name, class: class, target: targetID, result: &out})
	return out
}

// SendSettings broadcasts the Back-to-White configuration.
func (l *Lobby) SendSettings(enabled bool, duration float64) {
	l.call(sendSettings{enabled: enabled, duration: duration})
}

// ClearError forgets the last recorded error.
func (l *Lobby) ClearError() { l.call(clearError{}) }

// State returns a snapshot of the current session.
func (l *Lobby) State() Snapshot {
	var snap Snapshot
	if !l.call(getState{result: &snap}) {
		return l.session.snapshot(false, nil)
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow subscribers miss intermediate snapshots.
func (l *Lobby) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, snapshotDepth)
	l.subscribersMu.Lock()
	l.subscribers[ch] = struct{}{}
	l.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription.
func (l *Lobby) Unsubscribe(ch chan Snapshot) {
	l.subscribersMu.Lock()
	defer l.subscribersMu.Unlock()
	if _, ok := l.subscribers[ch]; ok {
		delete(l.subscribers, ch)
		close(ch)
	}
}

// Close stops the loop and releases the transport activity it started.
// The transport itself stays open; its owner closes it.
func (l *Lobby) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		<-l.done
	})
}

// call posts m to the loop and waits until it is applied. It reports false
// if the lobby is closed.
func (l *Lobby) call(m msg) bool {
	done := make(chan struct{})
	select {
	case l.inbox <- envelope{msg: m, done: done}:
	case <-l.done:
		return false
	}
	<-done
	return true
}

// post delivers m without waiting for it to be applied.
func (l *Lobby) post(m msg) {
	select {
	case l.inbox <- envelope{msg: m}:
	case <-l.done:
	}
}

func (l *Lobby) run() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case evt, ok := <-l.eventCh:
			if !ok {
				l.eventCh = nil
				continue
			}
			l.handleEvent(evt)

		case env := <-l.inbox:
			l.handle(env.msg)
			if env.done != nil {
				close(env.done)
			}
		}

		if l.dirty {
			l.dirty = false
			l.publish()
		}
	}
}

func (l *Lobby) handle(m msg) {
	switch m := m.(type) {
	case joinLobby:
		if l.session.RemoteMode != ModeNone {
			return
		}
		l.session.RemoteMode = ModeLobby
		l.transition()

	case leaveLobby:
		l.session.RemoteMode = ModeNone
		l.session.MyRole = device.RoleIdle
		l.transition()

	case setRole:
		l.session.MyRole = m.role
		l.transition()

	case setRemoteMode:
		l.session.RemoteMode = m.mode
		l.transition()

	case startGame:
		l.session.GameState = protocol.GameState{State: protocol.PhaseRunning, Game: m.game}
		l.broadcast(protocol.GameStateUpdate{State: l.session.GameState})
		l.dirty = true

	case stopGame:
		l.session.GameState = protocol.GameState{State: protocol.PhaseLobby}
		l.broadcast(protocol.GameStateUpdate{State: l.session.GameState})
		l.dirty = true

	case sendCommand:
		cmd := protocol.Command{Name: m.name, Class: m.class, Timestamp: l.opts.Now().UnixMilli()}
		*m.result = cmd
		if m.target != "" {
			l.enqueue([]string{m.target}, cmd)
		} else {
			l.broadcast(cmd)
		}

	case sendSettings:
		l.broadcast(protocol.NewSettings(m.enabled, m.duration))

	case clearError:
		if l.lastErr != nil {
			l.lastErr = nil
			l.dirty = true
		}

	case getState:
		*m.result = l.session.snapshot(l.loading, l.lastErr)

	case startDone:
		l.finishStart(m)
	}
}

// transition applies the current (mode, role) pair. Any change is a full
// stop followed, for active pairs, by a fresh start.
func (l *Lobby) transition() {
	key := transitionKey{mode: l.session.RemoteMode, role: l.session.MyRole}
	if key == l.applied {
		return
	}

	log.Info().
		Str("fromMode", string(l.applied.mode)).
		Str("fromRole", string(l.applied.role)).
		Str("mode", string(key.mode)).
		Str("role", string(key.role)).
		Msg("Lobby transition")

	l.applied = key
	l.gen++
	l.dirty = true

	l.stopTransport()
	l.session.ClearDevices()

	if !key.active() {
		l.loading = false
		return
	}

	l.loading = true
	ctx, cancel := context.WithCancel(l.ctx)
	l.startCancel = cancel
	go l.start(ctx, l.gen, key.role)
}

func (l *Lobby) stopTransport() {
	if l.startCancel != nil {
		l.startCancel()
		l.startCancel = nil
	}

	l.startMu.Lock()
	defer l.startMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := l.transport.StopAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop transport")
	}
	l.queue.Reset()
}

// start runs permissions, the settle delay, then advertise or discover.
func (l *Lobby) start(ctx context.Context, gen uint64, role device.Role) {
	l.startMu.Lock()
	err := l.runStart(ctx, role)
	l.startMu.Unlock()

	l.post(startDone{gen: gen, err: err})
}

func (l *Lobby) runStart(ctx context.Context, role device.Role) error {
	if err := l.opts.Permissions.Request(ctx, role); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.opts.SettleDelay):
	}

	self := device.Presence{ClientID: l.self.ClientID, Name: l.self.Name, Role: role}
	if role == device.RoleDisplay {
		return l.transport.StartAdvertising(ctx, self)
	}
	return l.transport.StartDiscovery(ctx, self)
}

func (l *Lobby) finishStart(m startDone) {
	if m.gen != l.gen {
		return
	}
	l.loading = false
	l.dirty = true

	switch {
	case m.err == nil:
		log.Info().Str("role", string(l.applied.role)).Msg("Transport started")
	case errors.Is(m.err, context.Canceled):
	case errors.Is(m.err, device.ErrPermissionDenied):
		log.Warn().Err(m.err).Msg("Permission denied")
		l.lastErr = &Error{Code: CodePermissionDenied, Message: m.err.Error()}
	default:
		log.Error().Err(m.err).Msg("Transport failed to start")
		l.lastErr = &Error{Code: CodeStartFailed, Message: m.err.Error()}
	}
}

func (l *Lobby) handleEvent(evt device.Event) {
	if !l.applied.active() {
		return
	}

	switch evt.Type {
	case device.EventPeerFound:
		if l.applied.role == device.RoleController {
			if l.queue.Offer(evt.PeerID) {
				log.Debug().Str("peer", evt.PeerID).Msg("Peer queued for connection")
			}
		}

	case device.EventPeerLost:
		l.queue.Forget(evt.PeerID)

	case device.EventInvitation:
		go func(peerID string) {
			if err := l.transport.Accept(l.ctx, peerID); err != nil {
				log.Warn().Err(err).Str("peer", peerID).Msg("Failed to accept invitation")
			}
		}(evt.PeerID)

	case device.EventConnected:
		l.queue.MarkConnected(evt.PeerID)
		l.onConnected(evt)
		l.dirty = true

	case device.EventDisconnected:
		l.queue.MarkDisconnected(evt.PeerID)
		l.session.Remove(evt.PeerID)
		l.dirty = true

	case device.EventText:
		if err := l.dispatch.Dispatch(l.session, evt.PeerID, evt.Payload); err != nil {
			log.Debug().Err(err).Str("peer", evt.PeerID).Msg("Dropped inbound message")
			return
		}
		l.dirty = true
	}
}

func (l *Lobby) onConnected(evt device.Event) {
	d, ok := l.session.KnownDevices[evt.PeerID]
	if !ok {
		d = device.Device{ID: evt.PeerID, ClientID: evt.PeerID, Name: evt.PeerID}
	}
	if evt.Name != "" {
		d.Name = evt.Name
	}
	d.Role = device.RoleIdle
	d.LastSeen = l.opts.Now()
	l.session.Upsert(d)

	log.Info().Str("peer", evt.PeerID).Str("name", d.Name).Msg("Peer connected")

	l.enqueue([]string{evt.PeerID}, protocol.DeviceInfo{
		Role: l.session.MyRole,
		Name: l.self.Name,
		ID:   l.self.ClientID,
	})
}

// broadcast sends m to every known peer as independent unicasts.
func (l *Lobby) broadcast(m protocol.Message) {
	l.enqueue(l.session.PeerIDs(), m)
}

func (l *Lobby) enqueue(peers []string, m protocol.Message) {
	if len(peers) == 0 {
		return
	}
	payload, err := l.codec.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("type", string(m.MessageType())).Msg("Failed to encode message")
		return
	}
	select {
	case l.outbox <- outbound{peers: peers, kind: m.MessageType(), payload: payload}:
	default:
		log.Warn().Str("type", string(m.MessageType())).Msg("Outbox full, dropping message")
	}
}

// sender drains the outbox in order. A failed send is logged and skipped.
func (l *Lobby) sender() {
	for {
		select {
		case <-l.ctx.Done():
			return
		case out := <-l.outbox:
			for _, peer := range out.peers {
				if err := l.transport.Send(l.ctx, peer, out.payload); err != nil {
					log.Warn().Err(err).Str("peer", peer).Str("type", string(out.kind)).Msg("Send failed")
				}
			}
		}
	}
}

func (l *Lobby) publish() {
	snap := l.session.snapshot(l.loading, l.lastErr)

	l.subscribersMu.Lock()
	defer l.subscribersMu.Unlock()
	for ch := range l.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (l *Lobby) shutdown() {
	l.stopTransport()
	l.queue.Close()
	if l.events != nil && l.eventCh != nil {
		l.events.Unsubscribe(l.eventCh)
	}

	l.subscribersMu.Lock()
	for ch := range l.subscribers {
		delete(l.subscribers, ch)
		close(ch)
	}
	l.subscribersMu.Unlock()
	log.Debug().Msg("Lobby stopped")
}
