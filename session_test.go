package main

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type sessionFixture struct {
	clock    *clockwork.FakeClock
	hub      *Hub
	store    *RoomStore
	sessions *SessionRegistry
}

func newSessionFixture(t *testing.T, grace time.Duration) *sessionFixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	hub := newHub()
	store := NewRoomStore(clock, 0, 0, hub)
	t.Cleanup(store.Close)

	return &sessionFixture{
		clock:    clock,
		hub:      hub,
		store:    store,
		sessions: newSessionRegistry(store, hub, clock, grace),
	}
}

// awaitSnapshot pulls queued messages off a test client until one
// matches the predicate, failing after a wall-clock deadline. Grace
// timers fire on their own goroutine, so the removal snapshot arrives
// asynchronously even under the fake clock.
func awaitSnapshot(t *testing.T, c *client, match func(*Room) bool) *Room {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-c.send:
			snap, ok := msg.(snapshotMessage)
			if !ok {
				continue
			}
			if match(snap.Room) {
				return snap.Room
			}
		case <-deadline:
			t.Fatal("expected snapshot never arrived")
		}
	}
}

func awaitRoomClosed(t *testing.T, c *client) roomClosedMessage {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if closed, ok := msg.(roomClosedMessage); ok {
				return closed
			}
		case <-deadline:
			t.Fatal("expected room_closed never arrived")
		}
	}
}

func TestDisconnectGraceRemovesPlayer(t *testing.T) {
	f := newSessionFixture(t, 30*time.Second)

	_, hostID, err := f.store.CreateRoom("Alice", "TEST", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, bobID, err := f.store.JoinRoom("TEST", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	hostConn := newClient(nil)
	bobConn := newClient(nil)
	f.sessions.Bind(hostConn, "TEST", hostID)
	f.sessions.Bind(bobConn, "TEST", bobID)

	f.sessions.OnDisconnect(bobConn)

	awaitSnapshot(t, hostConn, func(r *Room) bool {
		p := r.player(bobID)
		return p != nil && !p.Connected
	})

	f.clock.Advance(31 * time.Second)

	awaitSnapshot(t, hostConn, func(r *Room) bool {
		return r.player(bobID) == nil
	})

	snap, err := f.store.Snapshot("TEST")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 1 {
		t.Fatalf("expected only the host to remain, got %d players", len(snap.Players))
	}
}

func TestReconnectWithinGraceKeepsSeat(t *testing.T) {
	f := newSessionFixture(t, 30*time.Second)

	_, hostID, err := f.store.CreateRoom("Alice", "TEST", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, bobID, err := f.store.JoinRoom("TEST", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	hostConn := newClient(nil)
	bobConn := newClient(nil)
	f.sessions.Bind(hostConn, "TEST", hostID)
	f.sessions.Bind(bobConn, "TEST", bobID)

	f.sessions.OnDisconnect(bobConn)

	// Reconnect on a fresh connection before the grace period lapses.
	bobConn2 := newClient(nil)
	f.sessions.Bind(bobConn2, "TEST", bobID)
	if _, err := f.store.ResumePlayer("TEST", bobID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	f.clock.Advance(time.Minute)

	// The cancelled timer must not have removed the seat. Drive one more
	// mutation through so there is a snapshot to observe either way.
	if _, err := f.store.AwardPoints("TEST", hostID, bobID, 100); err != nil {
		t.Fatalf("award: %v", err)
	}

	snap := awaitSnapshot(t, bobConn2, func(r *Room) bool {
		p := r.player(bobID)
		return p != nil && p.Score == 100
	})
	if !snap.player(bobID).Connected {
		t.Fatal("expected resumed player to be connected")
	}
}

func TestHostDisconnectTearsDownRoom(t *testing.T) {
	f := newSessionFixture(t, 30*time.Second)

	_, hostID, err := f.store.CreateRoom("Alice", "TEST", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, bobID, err := f.store.JoinRoom("TEST", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	hostConn := newClient(nil)
	bobConn := newClient(nil)
	f.sessions.Bind(hostConn, "TEST", hostID)
	f.sessions.Bind(bobConn, "TEST", bobID)

	f.sessions.OnDisconnect(hostConn)

	closed := awaitRoomClosed(t, bobConn)
	if closed.Reason != reasonHostLeft {
		t.Fatalf("expected reason %q, got %q", reasonHostLeft, closed.Reason)
	}

	if _, err := f.store.Snapshot("TEST"); kindOf(err) != KindRoomNotFound {
		t.Fatalf("expected room_not_found after teardown, got %v", err)
	}
	if f.hub.connectionCount() != 0 {
		t.Fatalf("expected hub drained, got %d subscribers", f.hub.connectionCount())
	}
}

func TestUnbindSkipsDisconnectPolicy(t *testing.T) {
	f := newSessionFixture(t, 30*time.Second)

	_, hostID, err := f.store.CreateRoom("Alice", "TEST", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	hostConn := newClient(nil)
	f.sessions.Bind(hostConn, "TEST", hostID)

	// An explicit leave unbinds first, so the read loop's disconnect
	// callback must not tear the room down a second time.
	f.sessions.Unbind(hostConn)
	f.sessions.OnDisconnect(hostConn)

	if _, err := f.store.Snapshot("TEST"); err != nil {
		t.Fatalf("unbound disconnect touched the room: %v", err)
	}
	if code, _ := hostConn.binding(); code != "" {
		t.Fatalf("expected cleared binding, got %q", code)
	}
}

func TestZeroGraceRemovesImmediately(t *testing.T) {
	f := newSessionFixture(t, 0)

	_, _, err := f.store.CreateRoom("Alice", "TEST", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, bobID, err := f.store.JoinRoom("TEST", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	bobConn := newClient(nil)
	f.sessions.Bind(bobConn, "TEST", bobID)
	f.sessions.OnDisconnect(bobConn)

	snap, err := f.store.Snapshot("TEST")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.player(bobID) != nil {
		t.Fatal("expected immediate removal with no grace period")
	}
}
