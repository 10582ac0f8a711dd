package server

import (
	"sync"

	"github.com/ar-cyber/TauriSEQTA/auth"
)

var _ auth.Notifier = (*EventHub)(nil)

// EventHub fans backend events out to every connected UI. Slow subscribers
// drop events rather than block the notifier; the UI treats events as
// level-triggered hints, not a durable stream.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan string]struct{})}
}

// Notify broadcasts an event to all subscribers.
func (h *EventHub) Notify(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (h *EventHub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}
