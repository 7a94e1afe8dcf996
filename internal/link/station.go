package link

import (
	"context"
	"sync"
)

// EventKind identifies a station event.
type EventKind int

const (
	EventStationStart EventKind = iota
	EventDisconnected
	EventGotAddress
)

func (k EventKind) String() string {
	switch k {
	case EventStationStart:
		return "station_start"
	case EventDisconnected:
		return "disconnected"
	case EventGotAddress:
		return "got_address"
	default:
		return "unknown"
	}
}

// Event is emitted by a Station to its subscribers.
type Event struct {
	Kind    EventKind
	Address string // set for EventGotAddress
	Reason  string // set for EventDisconnected
}

// Station is the link-layer collaborator driven by a Manager.
type Station interface {
	// Subscribe registers an event subscription. The returned func removes it
	// and must be called exactly once.
	Subscribe() (<-chan Event, func())
	// Start enters station mode and emits EventStationStart.
	Start(ctx context.Context) error
	// Connect issues one connect request. Its outcome arrives as an event.
	Connect(ctx context.Context) error
}

// subscriberBuffer is the per-subscription event queue length.
const subscriberBuffer = 32

// eventHub fans station events out to subscribers.
type eventHub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func (h *eventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// emit delivers ev to every subscriber without blocking.
// It returns the number of subscribers whose queue was full.
func (h *eventHub) emit(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribers returns the number of live subscriptions.
func (h *eventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
