package device

import "sync"

// EventHub fans transport events out to subscribers. Transports embed it to
// satisfy EventSubscriber.
type EventHub struct {
	subscribers   []chan Event
	subscribersMu sync.Mutex
}

// Subscribe returns a buffered channel receiving every published event.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, 256)
	h.subscribersMu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.subscribersMu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends evt to all subscribers, skipping any whose buffer is full.
func (h *EventHub) Publish(evt Event) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
