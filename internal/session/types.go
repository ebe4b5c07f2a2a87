// Package session tracks connected sockets: identity, the room a socket
// joined, the outbound event queue, and the per-session guess throttle.
package session

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nearword/nearword/internal/metrics"
	"github.com/nearword/nearword/internal/streaming"
)

// ErrSessionNotFound means the session id is not registered.
var ErrSessionNotFound = errors.New("session not found")

// Session is one client connection. The session id, not the player name,
// is the authoritative participant key; names may collide.
type Session struct {
	id string

	mu         sync.Mutex
	playerName string
	roomID     string
	closed     bool
	outbox     chan streaming.Event
	limiter    *rate.Limiter
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Send queues an event for the writer pump without blocking. Events to a
// full or closed outbox are dropped and reported as false.
func (s *Session) Send(evt streaming.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbox <- evt:
		return true
	default:
		return false
	}
}

// Outbox is drained by the connection's writer goroutine. It is closed by
// Close, which ends the writer.
func (s *Session) Outbox() <-chan streaming.Event { return s.outbox }

// Bind records the room this session joined and the name it plays under.
func (s *Session) Bind(roomID, playerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.playerName = playerName
}

// Room returns the bound room id and player name; roomID is "" before the
// first join.
func (s *Session) Room() (roomID, playerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.playerName
}

// AllowGuess consumes one token from the guess throttle.
func (s *Session) AllowGuess() bool {
	ok := s.limiter.Allow()
	if !ok {
		metrics.GuessesThrottled.Inc()
	}
	return ok
}

// Close closes the outbox; subsequent Sends drop. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbox)
}

func (s *Session) setLimits(r float64, burst int) {
	s.limiter.SetLimit(rate.Limit(r))
	s.limiter.SetBurst(burst)
}
