package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Channel names. Queue and KPI channels are namespaced per event; donor
// channels are flat, keyed by the donor's opaque token.
func QueueChannel(eventID string) string { return fmt.Sprintf("event:%s:queue", eventID) }
func KpiChannel(eventID string) string   { return fmt.Sprintf("event:%s:kpi", eventID) }
func DonorChannel(token string) string   { return fmt.Sprintf("donor:%s", token) }

const subscriberBuffer = 8

// Hub is an in-process publish/subscribe fan-out. Delivery is at-most-once
// and best-effort: a subscriber whose buffer is full misses the message and
// is expected to treat the next snapshot it receives as authoritative.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a listener on a channel. The returned cancel function
// removes the subscription and closes the message channel.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	messages := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	listeners := h.subs[channel]
	if listeners == nil {
		listeners = make(map[chan []byte]struct{})
		h.subs[channel] = listeners
	}
	listeners[messages] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if listeners, ok := h.subs[channel]; ok {
			if _, subscribed := listeners[messages]; subscribed {
				delete(listeners, messages)
				close(messages)
			}
			if len(listeners) == 0 {
				delete(h.subs, channel)
			}
		}
		h.mu.Unlock()
	}
	return messages, cancel
}

// Publish marshals the payload and delivers it to every subscriber of the
// channel. Safe to call on a nil hub (no transport attached): the message is
// silently dropped, as are messages to slow subscribers.
func (h *Hub) Publish(channel string, payload any) {
	if h == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for messages := range h.subs[channel] {
		select {
		case messages <- data:
		default:
		}
	}
}
