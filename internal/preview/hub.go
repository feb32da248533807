package preview

import (
	"sync"
	"sync/atomic"
)

const subscriberBufferSize = 16

// hub fans messages out to websocket subscribers. A subscriber that falls
// behind loses messages rather than blocking publishers.
type hub struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextID  uint64
	dropped atomic.Int64
}

type subscriber struct {
	ch      chan message
	dropped int64
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]*subscriber)}
}

// subscribe registers a subscriber. The returned cancel function removes it
// and reports how many messages it lost; calls after the first return 0.
func (h *hub) subscribe() (<-chan message, func() int64) {
	sub := &subscriber{ch: make(chan message, subscriberBufferSize)}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once

	return sub.ch, func() int64 {
		var lost int64

		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			lost = sub.dropped
			h.mu.Unlock()
		})

		return lost
	}
}

func (h *hub) publish(m message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- m:
		default:
			sub.dropped++
			h.dropped.Add(1)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}
