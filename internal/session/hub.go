package session

import (
	"sync"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// hub fans one session's event stream out to its subscribers. Publishing
// never blocks the driver: a subscriber that falls behind its buffer loses
// the oldest events, not the session its time.
type hub struct {
	mu     sync.Mutex
	buffer int
	nextID int
	subs   map[int]chan types.Event
	closed bool
}

func newHub(buffer int) *hub {
	if buffer < 1 {
		buffer = 1
	}

	return &hub{
		mu:     sync.Mutex{},
		buffer: buffer,
		nextID: 0,
		subs:   make(map[int]chan types.Event),
		closed: false,
	}
}

// publish delivers the event to every subscriber, dropping the oldest
// buffered event of any subscriber whose buffer is full.
func (h *hub) publish(event types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- event:
			default:
			}
		}
	}
}

// subscribe registers a new subscriber and returns its channel plus a cancel
// function. On a closed hub the channel comes back already closed, so late
// subscribers to a finished session observe an immediately ending stream.
func (h *hub) subscribe() (<-chan types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan types.Event, h.buffer)

	if h.closed {
		close(ch)

		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() { h.unsubscribe(id) }
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}

	delete(h.subs, id)
	close(ch)
}

// close ends the stream for every subscriber. Called exactly once, after the
// driver goroutine has finished publishing.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
