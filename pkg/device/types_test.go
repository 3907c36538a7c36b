package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"display", RoleDisplay},
		{"controller", RoleController},
		{"idle", RoleIdle},
		{"", RoleIdle},
		{"spectator", RoleIdle},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestEventHub_PublishAndUnsubscribe(t *testing.T) {
	var hub EventHub
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Publish(Event{Type: EventPeerFound, PeerID: "p1", Timestamp: time.Now()})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "p1", (<-a).PeerID)

	hub.Unsubscribe(b)
	_, ok := <-b
	assert.False(t, ok, "unsubscribed channel should be closed")

	hub.Publish(Event{Type: EventPeerLost, PeerID: "p1"})
	assert.Len(t, a, 1)
}

func TestEventHub_DropsWhenFull(t *testing.T) {
	var hub EventHub
	ch := hub.Subscribe()

	for i := 0; i < cap(ch)+10; i++ {
		hub.Publish(Event{Type: EventText, PeerID: "p"})
	}
	assert.Len(t, ch, cap(ch))
}

func TestNullTransport(t *testing.T) {
	nt := NewNullTransport()
	assert.False(t, nt.IsConnected())
	assert.ErrorIs(t, nt.StartAdvertising(t.Context(), Presence{}), ErrNotConnected)
	assert.ErrorIs(t, nt.Send(t.Context(), "p", nil), ErrNotConnected)
	assert.NoError(t, nt.StopAll(t.Context()))
}
