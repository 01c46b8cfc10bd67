package main

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SessionRegistry ties live connections to their seat in a room and
// runs the disconnect policy: a host dropping tears the room down
// immediately, anyone else gets a grace period to reconnect before
// their seat is released.
type SessionRegistry struct {
	mu      sync.Mutex
	store   *RoomStore
	hub     *Hub
	clock   clockwork.Clock
	grace   time.Duration
	pending map[string]clockwork.Timer // seat key -> grace timer
}

func newSessionRegistry(store *RoomStore, hub *Hub, clock clockwork.Clock, grace time.Duration) *SessionRegistry {
	return &SessionRegistry{
		store:   store,
		hub:     hub,
		clock:   clock,
		grace:   grace,
		pending: make(map[string]clockwork.Timer),
	}
}

func seatKey(code, playerID string) string {
	return code + "/" + playerID
}

// Bind attaches a connection to a seat and subscribes it to the room's
// snapshot stream. A pending removal for the same seat is cancelled,
// which is what makes reconnecting within the grace period safe.
func (s *SessionRegistry) Bind(c *client, code, playerID string) {
	s.mu.Lock()
	if timer, ok := s.pending[seatKey(code, playerID)]; ok {
		timer.Stop()
		delete(s.pending, seatKey(code, playerID))
	}
	s.mu.Unlock()

	c.bind(code, playerID)
	s.hub.Subscribe(code, c)
}

// Unbind detaches a connection without triggering the disconnect
// policy, used for explicit leaves.
func (s *SessionRegistry) Unbind(c *client) {
	code, _ := c.binding()
	if code == "" {
		return
	}
	s.hub.Unsubscribe(code, c)
	c.bind("", "")
}

// OnDisconnect runs when a connection's read loop exits for any reason.
func (s *SessionRegistry) OnDisconnect(c *client) {
	code, playerID := c.binding()
	if code == "" {
		return
	}

	s.hub.Unsubscribe(code, c)

	closed, err := s.store.MarkDisconnected(code, playerID)
	if err != nil || closed {
		return
	}

	log.Debug().
		Str("code", code).
		Str("player", playerID).
		Dur("grace", s.grace).
		Msg("player disconnected, grace period started")

	if s.grace <= 0 {
		s.store.RemoveIfDisconnected(code, playerID)
		return
	}

	key := seatKey(code, playerID)

	s.mu.Lock()
	if timer, ok := s.pending[key]; ok {
		timer.Stop()
	}
	s.pending[key] = s.clock.AfterFunc(s.grace, func() {
		s.expire(key, code, playerID)
	})
	s.mu.Unlock()
}

func (s *SessionRegistry) expire(key, code, playerID string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	s.store.RemoveIfDisconnected(code, playerID)
}
