// Package notify delivers evaluated-submission payloads to the submitting
// user's live connections. Delivery is fire-and-forget: when the user has no
// live connection the message is dropped, and the submission history remains
// the source of truth.
package notify

import "sync"

const defaultSubscriberBuffer = 8

// Hub is an in-process publish/subscribe switchboard keyed by user id. Each
// authenticated connection subscribes to exactly one group, named by the
// user's id.
type Hub struct {
	mu     sync.RWMutex
	groups map[int64]map[*subscriber]struct{}
}

type subscriber struct {
	userID int64
	ch     chan []byte
}

func NewHub() *Hub {
	return &Hub{groups: make(map[int64]map[*subscriber]struct{})}
}

// Subscribe joins the user's group and returns the receive channel plus an
// unsubscribe function. Unsubscribe is idempotent and closes the channel.
func (h *Hub) Subscribe(userID int64) (<-chan []byte, func()) {
	sub := &subscriber{
		userID: userID,
		ch:     make(chan []byte, defaultSubscriberBuffer),
	}

	h.mu.Lock()
	group, ok := h.groups[userID]
	if !ok {
		group = make(map[*subscriber]struct{})
		h.groups[userID] = group
	}
	group[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if group, ok := h.groups[userID]; ok {
				delete(group, sub)
				if len(group) == 0 {
					delete(h.groups, userID)
				}
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Publish fans payload out to every live subscriber of the user and returns
// the delivered count. A subscriber whose buffer is full is skipped; the
// publisher never blocks on a slow consumer.
func (h *Hub) Publish(userID int64, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.groups[userID] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers reports how many live connections the user has.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}
