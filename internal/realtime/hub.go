package realtime

import (
	"sync"
	"time"
)

// Event is one diagnosis progress notification. Type is one of "started",
// "succeeded" or "failed"; Index identifies the image within the batch.
type Event struct {
	Type    string    `json:"type"`
	Index   int       `json:"index"`
	Disease string    `json:"disease,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Hub is an in-process publish/subscribe fan-out of progress events keyed by
// requesting identity. Subscribers that fall behind lose events instead of
// blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a listener for the given identity. The returned cancel
// function must be called when the listener goes away.
func (h *Hub) Subscribe(key string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan Event]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[key]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber of the identity. Full
// subscriber buffers drop the event.
func (h *Hub) Publish(key string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[key] {
		select {
		case ch <- ev:
		default:
		}
	}
}
