package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCooldown is the minimum spacing between two connection requests.
const DefaultCooldown = 1500 * time.Millisecond

// Connector issues one connection request to the transport.
type Connector func(ctx context.Context, peerID string) error

// AdmissionQueue serializes outgoing connection requests so that at most one
// request is issued per cooldown window. Requests that fail are forgotten,
// not retried; the peer becomes eligible again when it is offered anew.
type AdmissionQueue struct {
	connect  Connector
	cooldown time.Duration

	mu         sync.Mutex
	connected  map[string]struct{}
	connecting map[string]struct{}
	queue      []string
	draining   bool
	epoch      uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAdmissionQueue creates a queue issuing requests through connect.
func NewAdmissionQueue(connect Connector, cooldown time.Duration) *AdmissionQueue {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AdmissionQueue{
		connect:    connect,
		cooldown:   cooldown,
		connected:  make(map[string]struct{}),
		connecting: make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Offer enqueues peerID unless it is already connected or mid-connection.
// It reports whether the peer was enqueued.
func (q *AdmissionQueue) Offer(peerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.connected[peerID]; ok {
		return false
	}
	if _, ok := q.connecting[peerID]; ok {
		return false
	}

	q.connecting[peerID] = struct{}{}
	q.queue = append(q.queue, peerID)

	if !q.draining {
		q.draining = true
		go q.drain(q.ctx, q.epoch)
	}
	return true
}

// drain issues one request per cooldown until the queue is empty. A drain
// loop belongs to one epoch; Reset starts a new epoch and orphans it.
func (q *AdmissionQueue) drain(ctx context.Context, epoch uint64) {
	for {
		q.mu.Lock()
		if q.epoch != epoch {
			q.mu.Unlock()
			return
		}
		if len(q.queue) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		peerID := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		log.Debug().Str("peer", peerID).Msg("Requesting connection")
		go q.request(ctx, epoch, peerID)

		select {
		case <-ctx.Done():
			return
		case <-time.After(q.cooldown):
		}
	}
}

// request runs one connection attempt. It has no timeout: a request that
// never resolves leaves the peer in the connecting set.
func (q *AdmissionQueue) request(ctx context.Context, epoch uint64, peerID string) {
	err := q.connect(ctx, peerID)
	if err == nil {
		return
	}

	log.Warn().Err(err).Str("peer", peerID).Msg("Connection request failed")

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.epoch == epoch {
		delete(q.connecting, peerID)
	}
}

// MarkConnected records that the transport reports peerID as connected.
func (q *AdmissionQueue) MarkConnected(peerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.connecting, peerID)
	q.connected[peerID] = struct{}{}
}

// MarkDisconnected removes every trace of peerID.
func (q *AdmissionQueue) MarkDisconnected(peerID string) {
	q.Forget(peerID)
	q.mu.Lock()
	delete(q.connected, peerID)
	q.mu.Unlock()
}

// Forget clears the connecting flag for peerID and drops it from the pending
// queue, making it eligible to be offered again.
func (q *AdmissionQueue) Forget(peerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.connecting, peerID)
	for i, id := range q.queue {
		if id == peerID {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			break
		}
	}
}

// Reset cancels pending and in-flight requests and clears all state.
func (q *AdmissionQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancel()
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.epoch++
	q.draining = false
	q.queue = nil
	clear(q.connected)
	clear(q.connecting)
}

// Close stops the queue for good.
func (q *AdmissionQueue) Close() {
	q.Reset()
	q.mu.Lock()
	q.cancel()
	q.mu.Unlock()
}

// Connected returns the ids the transport has reported as connected.
func (q *AdmissionQueue) Connected() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.connected))
	for id := range q.connected {
		out = append(out, id)
	}
	return out
}

// Pending returns how many peers are queued or mid-connection.
func (q *AdmissionQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.connecting)
}
