/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub fans room snapshots out to every connection subscribed to a room
// code. Delivery is fire-and-forget from the mutation path: enqueueing
// never blocks, and a connection whose outbound queue overflows is
// closed so its client reconnects and resyncs from a fresh snapshot.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

func newHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]bool),
	}
}

func (h *Hub) Subscribe(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[code] == nil {
		h.rooms[code] = make(map[*client]bool)
	}
	h.rooms[code][c] = true
}

func (h *Hub) Unsubscribe(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[code]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.rooms, code)
	}
}

func (h *Hub) subscribers(code string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*client, 0, len(h.rooms[code]))
	for c := range h.rooms[code] {
		subs = append(subs, c)
	}
	return subs
}

// RoomUpdated implements Broadcaster.
func (h *Hub) RoomUpdated(code string, snap *Room) {
	msg := newSnapshotMessage(snap)

	for _, c := range h.subscribers(code) {
		if !c.enqueue(msg) {
			log.Warn().
				Str("code", code).
				Str("connection", c.id).
				Msg("send queue full, dropping connection")
			c.close()
		}
	}
}

// RoomClosed implements Broadcaster. Subscribers get one terminal
// message and are then disconnected.
func (h *Hub) RoomClosed(code string, reason string) {
	h.mu.Lock()
	subs := make([]*client, 0, len(h.rooms[code]))
	for c := range h.rooms[code] {
		subs = append(subs, c)
	}
	delete(h.rooms, code)
	h.mu.Unlock()

	msg := roomClosedMessage{Type: msgRoomClosed, Reason: reason}
	for _, c := range subs {
		c.enqueue(msg)
		c.close()
	}
}

func (h *Hub) connectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.rooms {
		total += len(subs)
	}
	return total
}
