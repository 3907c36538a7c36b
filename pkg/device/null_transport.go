package device

import "context"

// NullTransport is a no-op transport used when no radio or realtime store is
// available. It lets the facade run in limited mode.
type NullTransport struct{}

// NewNullTransport creates a new NullTransport.
func NewNullTransport() *NullTransport {
	return &NullTransport{}
}

func (t *NullTransport) StartAdvertising(ctx context.Context, self Presence) error {
	return ErrNotConnected
}

func (t *NullTransport) StartDiscovery(ctx context.Context, self Presence) error {
	return ErrNotConnected
}

func (t *NullTransport) StopAll(ctx context.Context) error {
	return nil
}

func (t *NullTransport) Connect(ctx context.Context, peerID string) error {
	return ErrNotConnected
}

func (t *NullTransport) Accept(ctx context.Context, peerID string) error {
	return ErrNotConnected
}

func (t *NullTransport) Send(ctx context.Context, peerID string, payload []byte) error {
	return ErrNotConnected
}

func (t *NullTransport) IsConnected() bool {
	return false
}

func (t *NullTransport) Close() {}

// Subscribe returns a channel that is never sent to.
func (t *NullTransport) Subscribe() chan Event {
	return make(chan Event)
}

func (t *NullTransport) Unsubscribe(ch chan Event) {
	close(ch)
}
