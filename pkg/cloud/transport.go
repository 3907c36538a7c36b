package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/peerlobby/pkg/device"
)

const (
	// DefaultKeepAlive is how often presence lastSeen is refreshed.
	DefaultKeepAlive = 5 * time.Second
	// DefaultStaleness is the age after which a presence record is ignored.
	DefaultStaleness = 30 * time.Second

	// DefaultLobby is the shared lobby path when none is configured.
	DefaultLobby = "default"

	pingTimeout = 2 * time.Second
	stopTimeout = 5 * time.Second
)

// Inbox sub-paths
const (
	inboxCommands = "commands"
	inboxSettings = "settings"
	inboxMessages = "messages"
)

// Options configures a Transport. Zero values select defaults.
type Options struct {
	Lobby     string
	KeepAlive time.Duration
	Staleness time.Duration
	Now       func() time.Time
}

type presenceRecord struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Role     device.Role `json:"role"`
	LastSeen int64       `json:"lastSeen"`
}

type inboxRecord struct {
	From    string `json:"from"`
	Name    string `json:"name,omitempty"`
	Payload string `json:"payload"`
	SentAt  int64  `json:"sentAt"`
}

type peer struct {
	name     string
	role     device.Role
	lastSeen time.Time
}

// Transport implements device.Transport over a Store. Presence is a record
// per device under the lobby; messaging is a write to the recipient's inbox.
// There is no broadcast primitive.
type Transport struct {
	device.EventHub

	store Store
	opts  Options

	mu          sync.Mutex
	self        device.Presence
	active      bool
	discovering bool
	cancel      context.CancelFunc
	peers       map[string]peer
	connected   map[string]struct{}
}

// NewTransport creates a Transport writing into store.
func NewTransport(store Store, opts Options) *Transport {
	if opts.Lobby == "" {
		opts.Lobby = DefaultLobby
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.Staleness <= 0 {
		opts.Staleness = DefaultStaleness
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Transport{
		store:     store,
		opts:      opts,
		peers:     make(map[string]peer),
		connected: make(map[string]struct{}),
	}
}

func (t *Transport) devicesPrefix() string {
	return "lobbies/" + t.opts.Lobby + "/devices/"
}

func (t *Transport) presencePath(id string) string {
	return t.devicesPrefix() + id
}

func (t *Transport) inboxPrefix(id string) string {
	return "lobbies/" + t.opts.Lobby + "/inbox/" + id + "/"
}

func (t *Transport) StartAdvertising(ctx context.Context, self device.Presence) error {
	return t.start(ctx, self, false)
}

func (t *Transport) StartDiscovery(ctx context.Context, self device.Presence) error {
	return t.start(ctx, self, true)
}

// start announces presence, keeps it fresh, and watches both the inbox and
// the lobby's presence records. Only discovery reports found peers.
func (t *Transport) start(ctx context.Context, self device.Presence, discover bool) error {
	activity, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.self = self
	t.active = true
	t.discovering = discover
	t.cancel = cancel
	clear(t.peers)
	clear(t.connected)
	t.mu.Unlock()

	fail := func(err error) error {
		cancel()
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		return err
	}

	if err := t.clearInbox(ctx, self.ClientID); err != nil {
		return fail(fmt.Errorf("clear inbox: %w", err))
	}
	if err := t.writePresence(ctx, self); err != nil {
		return fail(fmt.Errorf("write presence: %w", err))
	}
	if err := t.store.OnDisconnectRemove(ctx, t.presencePath(self.ClientID)); err != nil {
		return fail(fmt.Errorf("register presence cleanup: %w", err))
	}

	inbox, err := t.store.Watch(activity, t.inboxPrefix(self.ClientID))
	if err != nil {
		return fail(fmt.Errorf("watch inbox: %w", err))
	}
	presence, err := t.store.Watch(activity, t.devicesPrefix())
	if err != nil {
		return fail(fmt.Errorf("watch presence: %w", err))
	}

	go t.keepAlive(activity, self)
	go t.readInbox(activity, inbox)
	go t.readPresence(presence, self.ClientID)
	go t.prune(activity)

	log.Info().
		Str("lobby", t.opts.Lobby).
		Str("role", string(self.Role)).
		Bool("discovering", discover).
		Msg("Cloud presence started")
	return nil
}

// clearInbox drops messages left over from an earlier session.
func (t *Transport) clearInbox(ctx context.Context, id string) error {
	stale, err := t.store.List(ctx, t.inboxPrefix(id))
	if err != nil {
		return err
	}
	for _, rec := range stale {
		if err := t.store.Remove(ctx, rec.Path); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) writePresence(ctx context.Context, self device.Presence) error {
	rec, err := json.Marshal(presenceRecord{
		ID:       self.ClientID,
		Name:     self.Name,
		Role:     self.Role,
		LastSeen: t.opts.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return t.store.Set(ctx, t.presencePath(self.ClientID), rec)
}

func (t *Transport) keepAlive(ctx context.Context, self device.Presence) {
	ticker := time.NewTicker(t.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, t.opts.KeepAlive)
			if err := t.writePresence(wctx, self); err != nil {
				log.Warn().Err(err).Msg("Presence keep-alive failed")
			}
			cancel()
		}
	}
}

func (t *Transport) readPresence(changes <-chan Change, selfID string) {
	prefix := t.devicesPrefix()

	for c := range changes {
		id := strings.TrimPrefix(c.Path, prefix)
		if id == selfID || id == "" || strings.Contains(id, "/") {
			continue
		}

		if c.Kind == ChangeDelete {
			t.lose(id)
			continue
		}

		var rec presenceRecord
		if err := json.Unmarshal(c.Value, &rec); err != nil {
			log.Warn().Err(err).Str("path", c.Path).Msg("Bad presence record")
			continue
		}
		seen := time.UnixMilli(rec.LastSeen)
		if t.opts.Now().Sub(seen) > t.opts.Staleness {
			t.lose(id)
			continue
		}
		t.found(id, peer{name: rec.Name, role: rec.Role, lastSeen: seen})
	}
}

func (t *Transport) found(id string, p peer) {
	t.mu.Lock()
	_, known := t.peers[id]
	t.peers[id] = p
	report := !known && t.discovering && p.role == device.RoleDisplay
	t.mu.Unlock()

	if report {
		t.Publish(device.Event{Type: device.EventPeerFound, PeerID: id, Name: p.name, Timestamp: t.opts.Now()})
	}
}

func (t *Transport) lose(id string) {
	t.mu.Lock()
	p, known := t.peers[id]
	delete(t.peers, id)
	_, wasConnected := t.connected[id]
	delete(t.connected, id)
	discovering := t.discovering
	t.mu.Unlock()

	now := t.opts.Now()
	if wasConnected {
		t.Publish(device.Event{Type: device.EventDisconnected, PeerID: id, Timestamp: now})
	}
	if known && discovering && p.role == device.RoleDisplay {
		t.Publish(device.Event{Type: device.EventPeerLost, PeerID: id, Timestamp: now})
	}
}

// prune drops peers whose presence stopped refreshing.
func (t *Transport) prune(ctx context.Context) {
	ticker := time.NewTicker(t.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pruneStale()
		}
	}
}

func (t *Transport) pruneStale() {
	now := t.opts.Now()

	t.mu.Lock()
	var stale []string
	for id, p := range t.peers {
		if now.Sub(p.lastSeen) > t.opts.Staleness {
			stale = append(stale, id)
		}
	}
	t.mu.Unlock()

	for _, id := range stale {
		log.Debug().Str("peer", id).Msg("Presence went stale")
		t.lose(id)
	}
}

// readInbox delivers each inbox record once and then removes it.
func (t *Transport) readInbox(ctx context.Context, changes <-chan Change) {
	for c := range changes {
		if c.Kind != ChangePut {
			continue
		}

		var rec inboxRecord
		if err := json.Unmarshal(c.Value, &rec); err != nil || rec.From == "" {
			log.Warn().Str("path", c.Path).Msg("Bad inbox record")
			continue
		}

		t.mu.Lock()
		_, isConnected := t.connected[rec.From]
		if !isConnected {
			t.connected[rec.From] = struct{}{}
		}
		name := rec.Name
		if p, ok := t.peers[rec.From]; ok && name == "" {
			name = p.name
		}
		t.mu.Unlock()

		now := t.opts.Now()
		if !isConnected {
			t.Publish(device.Event{Type: device.EventConnected, PeerID: rec.From, Name: name, Timestamp: now})
		}
		t.Publish(device.Event{Type: device.EventText, PeerID: rec.From, Payload: []byte(rec.Payload), Timestamp: now})

		rctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := t.store.Remove(rctx, c.Path); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Str("path", c.Path).Msg("Failed to consume inbox record")
		}
		cancel()
	}
}

func (t *Transport) StopAll(ctx context.Context) error {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil
	}
	t.active = false
	t.discovering = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	selfID := t.self.ClientID
	clear(t.peers)
	clear(t.connected)
	t.mu.Unlock()

	if err := t.store.Remove(ctx, t.presencePath(selfID)); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// Connect has no handshake in this medium: a known peer is connected at once.
func (t *Transport) Connect(ctx context.Context, peerID string) error {
	t.mu.Lock()
	p, ok := t.peers[peerID]
	if ok {
		t.connected[peerID] = struct{}{}
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("connect %s: %w", peerID, device.ErrNotFound)
	}
	t.Publish(device.Event{Type: device.EventConnected, PeerID: peerID, Name: p.name, Timestamp: t.opts.Now()})
	return nil
}

// Accept is a no-op; inbox writers are treated as connected on first message.
func (t *Transport) Accept(ctx context.Context, peerID string) error {
	return nil
}

// Send writes payload as a new record under the recipient's inbox sub-path
// for its type.
func (t *Transport) Send(ctx context.Context, peerID string, payload []byte) error {
	t.mu.Lock()
	active, self := t.active, t.self
	t.mu.Unlock()
	if !active {
		return fmt.Errorf("send to %s: %w", peerID, device.ErrNotConnected)
	}

	rec, err := json.Marshal(inboxRecord{
		From:    self.ClientID,
		Name:    self.Name,
		Payload: string(payload),
		SentAt:  t.opts.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	path := t.messagePath(peerID, payload)
	if err := t.store.Set(ctx, path, rec); err != nil {
		return fmt.Errorf("send to %s: %w", peerID, err)
	}
	return nil
}

// messagePath is a unique record path under the recipient's inbox, so
// back-to-back sends never overwrite each other.
func (t *Transport) messagePath(peerID string, payload []byte) string {
	return t.inboxPrefix(peerID) + inboxKind(payload) + "/" + uuid.NewString()
}

// inboxKind picks the sub-path from the message type.
func inboxKind(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return inboxMessages
	}
	switch head.Type {
	case "command":
		return inboxCommands
	case "settings":
		return inboxSettings
	}
	return inboxMessages
}

func (t *Transport) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return t.store.Ping(ctx) == nil
}

func (t *Transport) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := t.StopAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to stop cloud transport")
	}
	if err := t.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}
