package cloud

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryHub is the shared database behind one or more MemoryStore clients.
type memoryHub struct {
	mu       sync.Mutex
	records  map[string]Record
	watchers map[*memoryWatcher]struct{}
	now      func() time.Time
}

type memoryWatcher struct {
	prefix string
	ch     chan Change
}

// MemoryStore is an in-process Store. Clients created with Fork share data
// but each has its own disconnect registrations.
type MemoryStore struct {
	hub *memoryHub

	mu           sync.Mutex
	onDisconnect []string
	closed       bool
}

// NewMemoryStore creates an empty in-memory database and a first client.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hub: &memoryHub{
		records:  make(map[string]Record),
		watchers: make(map[*memoryWatcher]struct{}),
		now:      time.Now,
	}}
}

// Fork returns another client of the same database.
func (m *MemoryStore) Fork() *MemoryStore {
	return &MemoryStore{hub: m.hub}
}

func (m *MemoryStore) check() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value []byte) error {
	if err := m.check(); err != nil {
		return err
	}
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := Record{Path: path, Value: append([]byte(nil), value...), UpdatedAt: h.now()}
	h.records[path] = rec
	h.notify(Change{Kind: ChangePut, Record: rec})
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.hub.remove(path)
	return nil
}

func (h *memoryHub) remove(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[path]; !ok {
		return
	}
	delete(h.records, path)
	h.notify(Change{Kind: ChangeDelete, Record: Record{Path: path, UpdatedAt: h.now()}})
}

// notify must be called with h.mu held. Slow watchers lose changes.
func (h *memoryHub) notify(c Change) {
	for w := range h.watchers {
		if !HasPrefix(c.Path, w.prefix) {
			continue
		}
		select {
		case w.ch <- c:
		default:
		}
	}
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Record
	for path, rec := range h.records {
		if HasPrefix(path, prefix) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) Watch(ctx context.Context, prefix string) (<-chan Change, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	h := m.hub

	h.mu.Lock()
	paths := make([]string, 0)
	for path := range h.records {
		if HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	w := &memoryWatcher{prefix: prefix, ch: make(chan Change, len(paths)+256)}
	for _, p := range paths {
		w.ch <- Change{Kind: ChangePut, Record: h.records[p]}
	}
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers, w)
		close(w.ch)
		h.mu.Unlock()
	}()
	return w.ch, nil
}

func (m *MemoryStore) OnDisconnectRemove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.onDisconnect = append(m.onDisconnect, path)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.check()
}

// Close ends this client and runs its disconnect registrations.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	paths := m.onDisconnect
	m.onDisconnect = nil
	m.mu.Unlock()

	for _, p := range paths {
		m.hub.remove(p)
	}
	return nil
}
