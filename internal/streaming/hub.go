// Package streaming fans room-scoped events out to connected sessions.
// It is in-memory pub/sub: one stream per room, sequence numbers assigned
// at publish time, and a bounded ring of recent events for reconnects.
package streaming

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/metrics"
)

// Event is one outbound wire frame.
type Event struct {
	Name string      `json:"event"`
	Seq  uint64      `json:"seq,omitempty"`
	Data interface{} `json:"data"`
}

// Subscriber receives events for a room. Send must never block; it reports
// false when the event was dropped.
type Subscriber interface {
	ID() string
	Send(evt Event) bool
}

// Hub routes events to the subscribers of each room. Publishers that need a
// total order (the per-room mutation path) serialize their Publish calls;
// the hub itself only guarantees that seq assignment matches publish order.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*stream
	capacity int
	logger   *zap.Logger
}

type stream struct {
	subs    map[string]Subscriber
	history *ring
}

// NewHub creates a hub keeping historySize events per room for replay.
func NewHub(historySize int, logger *zap.Logger) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		rooms:    make(map[string]*stream),
		capacity: historySize,
		logger:   logger,
	}
}

// Attach subscribes sub to roomID. Re-attaching the same subscriber id
// replaces the previous registration.
func (h *Hub) Attach(roomID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.rooms[roomID]
	if st == nil {
		st = &stream{subs: make(map[string]Subscriber), history: newRing(h.capacity)}
		h.rooms[roomID] = st
	}
	st.subs[sub.ID()] = sub
}

// Detach unsubscribes a subscriber id from roomID. Empty streams linger
// until DropRoom so late publishes keep their seq continuity.
func (h *Hub) Detach(roomID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.rooms[roomID]; ok {
		delete(st.subs, subID)
	}
}

// Publish assigns the next seq for roomID and delivers evt to every
// subscriber. Slow subscribers drop the event rather than stall the room.
func (h *Hub) Publish(roomID string, evt Event) Event {
	h.mu.Lock()
	st := h.rooms[roomID]
	if st == nil {
		st = &stream{subs: make(map[string]Subscriber), history: newRing(h.capacity)}
		h.rooms[roomID] = st
	}
	st.history.nextSeq++
	evt.Seq = st.history.nextSeq
	st.history.push(evt)
	subs := make([]Subscriber, 0, len(st.subs))
	for _, sub := range st.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(evt.Name).Inc()
	for _, sub := range subs {
		if !sub.Send(evt) {
			metrics.EventsDropped.Inc()
			h.logger.Warn("Dropped event on slow subscriber",
				zap.String("room_id", roomID),
				zap.String("session_id", sub.ID()),
				zap.String("event", evt.Name),
				zap.Uint64("seq", evt.Seq),
			)
		}
	}
	return evt
}

// ReplaySince returns the retained events for roomID with Seq > since,
// oldest first. Best effort within the ring capacity.
func (h *Hub) ReplaySince(roomID string, since uint64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := h.rooms[roomID]
	if st == nil {
		return nil
	}
	return st.history.since(since)
}

// DropRoom forgets a room's subscribers and history.
func (h *Hub) DropRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// Rooms returns the number of live streams.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ring is a fixed-capacity buffer of recent events.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
