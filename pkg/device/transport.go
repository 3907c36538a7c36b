package device

import "context"

// Transport defines the narrow peer capability set the lobby needs.
// Implementations wrap a concrete medium (serial radio modem, realtime
// database, ...) behind advertise/discover/connect/send primitives.
type Transport interface {
	// StartAdvertising makes this instance visible to discovering peers
	StartAdvertising(ctx context.Context, self Presence) error

	// StartDiscovery begins looking for advertising peers
	StartDiscovery(ctx context.Context, self Presence) error

	// StopAll stops advertising and discovery and drops every peer connection
	StopAll(ctx context.Context) error

	// Connect requests a connection to a discovered peer
	Connect(ctx context.Context, peerID string) error

	// Accept accepts an inbound connection invitation
	Accept(ctx context.Context, peerID string) error

	// Send delivers an opaque text payload to a connected peer
	Send(ctx context.Context, peerID string, payload []byte) error

	// IsConnected returns true if the underlying medium is usable
	IsConnected() bool

	// Close releases the transport
	Close()
}

// EventSubscriber defines the interface for subscribing to transport events
type EventSubscriber interface {
	// Subscribe returns a channel that receives transport events
	Subscribe() chan Event

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan Event)
}

// Permissions requests whatever platform grants a transport needs before
// it may start. Request returns ErrPermissionDenied when a grant is missing.
type Permissions interface {
	Request(ctx context.Context, role Role) error
}

// AllowAll grants every permission request.
type AllowAll struct{}

func (AllowAll) Request(ctx context.Context, role Role) error { return ctx.Err() }
