package device

import (
	"time"
)

// Role is the capacity a device plays in a lobby.
type Role string

const (
	RoleDisplay    Role = "display"
	RoleController Role = "controller"
	RoleIdle       Role = "idle"
)

// ParseRole maps a wire value onto a Role. Unknown values become RoleIdle.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleDisplay, RoleController:
		return Role(s)
	default:
		return RoleIdle
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDisplay || r == RoleController || r == RoleIdle
}

// Device represents one peer known to the local instance
type Device struct {
	ID       string    `json:"id"`       // Transport-assigned peer identifier
	ClientID string    `json:"clientId"` // Remote's self-asserted stable identifier
	Name     string    `json:"name"`     // Display name
	Role     Role      `json:"role"`
	LastSeen time.Time `json:"lastSeen"`
}

// Presence is what a device announces about itself when advertising.
type Presence struct {
	ClientID string
	Name     string
	Role     Role
}

// EventType identifies a raw transport event.
type EventType string

// Transport event types
const (
	EventPeerFound    EventType = "peer_found"
	EventPeerLost     EventType = "peer_lost"
	EventInvitation   EventType = "invitation"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventText         EventType = "text"
)

// Event is a raw event emitted by a transport adapter.
type Event struct {
	Type      EventType `json:"type"`
	PeerID    string    `json:"peerId"`
	Name      string    `json:"name,omitempty"` // Peer endpoint name if the transport knows it
	Payload   []byte    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
