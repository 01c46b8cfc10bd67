/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Generated codes skip I, O, 0 and 1 so they survive being read aloud.
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 4
	maxCodeLength    = 8
	codeAttempts     = 32
)

const (
	reasonHostLeft    = "HOST LEFT THE ROOM"
	reasonRoomExpired = "ROOM EXPIRED"
)

// Broadcaster receives every accepted mutation and every teardown. The
// hub implements it; tests substitute a recorder.
type Broadcaster interface {
	RoomUpdated(code string, snap *Room)
	RoomClosed(code string, reason string)
}

// RoomStore is the authoritative mapping from room code to room state.
// The top-level map is guarded by mu; each room carries its own lock so
// commands against one room serialize while other rooms proceed.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	clock       clockwork.Clock
	idleTimeout time.Duration
	maxRooms    int
	broadcast   Broadcaster

	done chan struct{}
	once sync.Once
}

type roomEntry struct {
	mu         sync.Mutex
	room       *Room
	lastActive time.Time

	// closed marks an entry torn down while another command still holds
	// a stale handle to it. Checked after the lock is acquired; set
	// under it.
	closed bool
}

func NewRoomStore(clock clockwork.Clock, idleTimeout time.Duration, maxRooms int, broadcast Broadcaster) *RoomStore {
	s := &RoomStore{
		rooms:       make(map[string]*roomEntry),
		clock:       clock,
		idleTimeout: idleTimeout,
		maxRooms:    maxRooms,
		broadcast:   broadcast,
		done:        make(chan struct{}),
	}

	if idleTimeout > 0 {
		go s.reaperLoop()
	}

	return s
}

// Close stops the background reaper. Room state is process-lifetime
// only; nothing is flushed anywhere.
func (s *RoomStore) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// normalizeCode uppercases and truncates a player-supplied room code.
// Manual codes are not filtered for confusable characters.
func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) > maxCodeLength {
		code = code[:maxCodeLength]
	}
	if len(code) < roomCodeLength {
		return "", errInvalidCommand("BAD ROOM CODE")
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", errInvalidCommand("BAD ROOM CODE")
		}
	}
	return code, nil
}

func randomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, roomCodeLength)
	for i := range out {
		out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(out)
}

func clampMaxPlayers(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 8:
		return 8
	default:
		return n
	}
}

// CreateRoom inserts a new room under the store lock, so two racing
// creates can never both claim the same code.
func (s *RoomStore) CreateRoom(hostName, requestedCode string, maxPlayers int) (*Room, string, error) {
	hostName, err := normalizeName(hostName)
	if err != nil {
		return nil, "", err
	}
	maxPlayers = clampMaxPlayers(maxPlayers)

	var code string
	if requestedCode != "" {
		code, err = normalizeCode(requestedCode)
		if err != nil {
			return nil, "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRooms > 0 && len(s.rooms) >= s.maxRooms {
		return nil, "", errServerFull
	}

	if code != "" {
		if _, exists := s.rooms[code]; exists {
			return nil, "", errCodeInUse
		}
	} else {
		for attempt := 0; ; attempt++ {
			if attempt == codeAttempts {
				return nil, "", errCodeExhausted
			}
			candidate := randomCode()
			if _, exists := s.rooms[candidate]; !exists {
				code = candidate
				break
			}
		}
	}

	room, hostID := newRoom(code, hostName, maxPlayers, s.clock.Now())
	s.rooms[code] = &roomEntry{
		room:       room,
		lastActive: s.clock.Now(),
	}

	log.Info().
		Str("code", code).
		Str("host", hostName).
		Int("max_players", maxPlayers).
		Msg("room created")

	return room.clone(), hostID, nil
}

func (s *RoomStore) entry(code string) (*roomEntry, string, error) {
	key := strings.ToUpper(strings.TrimSpace(code))

	s.mu.RLock()
	e, ok := s.rooms[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", errRoomNotFound
	}
	return e, key, nil
}

// apply runs one mutation under the room's entry lock, bumps the
// version, and broadcasts the resulting snapshot before the lock is
// released, which keeps snapshots flowing into subscriber queues in
// version order.
func (s *RoomStore) apply(code string, mutate func(*Room) error) (*Room, error) {
	e, key, err := s.entry(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The room may have been torn down between the lookup and the lock.
	if e.closed {
		return nil, errRoomNotFound
	}

	if err := mutate(e.room); err != nil {
		return nil, err
	}

	e.room.Version++
	e.lastActive = s.clock.Now()

	snap := e.room.clone()
	s.broadcast.RoomUpdated(key, snap)

	return snap, nil
}

// Snapshot returns a consistent copy of the room without mutating it.
func (s *RoomStore) Snapshot(code string) (*Room, error) {
	e, _, err := s.entry(code)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errRoomNotFound
	}

	return e.room.clone(), nil
}

func (s *RoomStore) JoinRoom(code, playerName string) (*Room, string, error) {
	var playerID string

	snap, err := s.apply(code, func(r *Room) error {
		p, err := r.addPlayer(playerName)
		if err != nil {
			return err
		}
		playerID = p.ID
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("code", snap.Code).Str("player", playerID).Msg("player joined")

	return snap, playerID, nil
}

// ResumePlayer reattaches a known player id after a reconnect.
func (s *RoomStore) ResumePlayer(code, playerID string) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		_, err := r.setConnected(playerID, true)
		return err
	})
}

// MarkDisconnected flags a player as gone. A disconnecting host tears
// the room down immediately; anyone else just flips to disconnected and
// is left to the caller's grace timer.
func (s *RoomStore) MarkDisconnected(code, playerID string) (closed bool, err error) {
	e, key, err := s.entry(code)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, errRoomNotFound
	}

	p := e.room.player(playerID)
	if p == nil {
		return false, errNotInRoom
	}

	if p.IsHost {
		s.closeRoom(e, key, reasonHostLeft)
		return true, nil
	}

	p.Connected = false
	e.room.Version++
	e.lastActive = s.clock.Now()
	s.broadcast.RoomUpdated(key, e.room.clone())

	return false, nil
}

// RemoveIfDisconnected drops a player whose grace period expired. A
// player who reconnected in the meantime is left alone.
func (s *RoomStore) RemoveIfDisconnected(code, playerID string) {
	_, err := s.apply(code, func(r *Room) error {
		p := r.player(playerID)
		if p == nil || p.Connected {
			return errNotInRoom
		}
		r.removePlayer(playerID)
		return nil
	})
	if err == nil {
		log.Info().Str("code", code).Str("player", playerID).Msg("disconnected player removed")
	}
}

// LeaveRoom handles an explicit leave command. A departing host closes
// the room for everyone; there is no host migration.
func (s *RoomStore) LeaveRoom(code, playerID string) (closed bool, err error) {
	e, key, err := s.entry(code)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, errRoomNotFound
	}

	p := e.room.player(playerID)
	if p == nil {
		return false, errNotInRoom
	}

	if p.IsHost {
		s.closeRoom(e, key, reasonHostLeft)
		return true, nil
	}

	e.room.removePlayer(playerID)
	e.room.Version++
	e.lastActive = s.clock.Now()
	s.broadcast.RoomUpdated(key, e.room.clone())

	return false, nil
}

// closeRoom removes the room from the table and emits the terminal
// notification. Callers hold the entry lock; the store lock is taken
// here, which is safe because the reaper only ever try-locks entries
// while holding the store lock. The entry is flagged closed so a
// command that resolved its handle before the teardown fails with
// room_not_found once it finally acquires the lock.
func (s *RoomStore) closeRoom(e *roomEntry, key, reason string) {
	e.closed = true

	s.mu.Lock()
	delete(s.rooms, key)
	s.mu.Unlock()

	log.Info().Str("code", key).Str("reason", reason).Msg("room closed")

	s.broadcast.RoomClosed(key, reason)
}

func (s *RoomStore) EditBoard(code, requesterID string, board []Category) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.editBoard(requesterID, board)
	})
}

func (s *RoomStore) StartGame(code, requesterID string) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.start(requesterID)
	})
}

func (s *RoomStore) OpenClue(code, requesterID, clueID string) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.openClue(requesterID, clueID)
	})
}

func (s *RoomStore) CloseClue(code, requesterID string) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.closeClue(requesterID)
	})
}

func (s *RoomStore) AwardPoints(code, requesterID, targetID string, delta int) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.awardPoints(requesterID, targetID, delta)
	})
}

func (s *RoomStore) EndGame(code, requesterID string) (*Room, error) {
	return s.apply(code, func(r *Room) error {
		return r.end(requesterID)
	})
}

func (s *RoomStore) roomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}

// reaperLoop periodically sweeps rooms that have had no connected
// players past the idle cutoff.
func (s *RoomStore) reaperLoop() {
	ticker := s.clock.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			s.sweep()
		}
	}
}

func (s *RoomStore) sweep() {
	cutoff := s.clock.Now().Add(-s.idleTimeout)

	var reaped []string

	s.mu.Lock()
	for key, e := range s.rooms {
		// A room with a command in flight is skipped this cycle.
		if !e.mu.TryLock() {
			continue
		}
		idle := !e.closed && e.room.connectedCount() == 0 && e.lastActive.Before(cutoff)
		if idle {
			e.closed = true
		}
		e.mu.Unlock()

		if idle {
			delete(s.rooms, key)
			reaped = append(reaped, key)
		}
	}
	s.mu.Unlock()

	for _, key := range reaped {
		log.Info().Str("code", key).Msg("idle room reaped")
		s.broadcast.RoomClosed(key, reasonRoomExpired)
	}
}
