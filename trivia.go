// Cluebox Trivia Game
//
// A host creates a room, other players join with a short code, and the
// host runs a 3x5 question board. Every connected client renders from
// the same authoritative room snapshot; the server owns all state and
// all rules.
//
// Features:
// - One websocket endpoint; commands carry the room code
// - Random 4-char room codes from a confusable-free alphabet, with
//   atomic server-side collision checks; custom codes supported
// - Exactly one host per room, verified server-side on every
//   host-gated command
// - Board editor (waiting rooms only); wholesale board replacement
//   resets all clue progress
// - One active clue at a time; clue progress is shared state
// - Versioned snapshots; stale or duplicate deliveries are discarded
//   client-side by version
// - Disconnect grace period for players; a departing host closes the
//   room for everyone
// - Idle rooms reaped after a configurable timeout
// - In-browser QR button to share the room join URL, backed by go-qrcode

package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	writeTimeout    = 10 * time.Second
	pongTimeout     = 60 * time.Second
	pingInterval    = 30 * time.Second
	maxCommandBytes = 256 * 1024 // board edits are the largest frames
	sendQueueSize   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one live websocket connection. The send queue is bounded;
// the hub closes any client that cannot keep up.
type client struct {
	id   string
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	code     string
	playerID string
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan any, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) bind(code, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.code = code
	c.playerID = playerID
}

func (c *client) binding() (code, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.code, c.playerID
}

// enqueue never blocks. A false return means the queue overflowed.
func (c *client) enqueue(msg any) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush whatever is already queued (the terminal
			// room_closed message in particular) before exiting.
			for {
				select {
				case msg := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// gameServer wires the store, hub, and session registry behind the
// websocket endpoint.
type gameServer struct {
	cfg      *Config
	store    *RoomStore
	hub      *Hub
	sessions *SessionRegistry
}

func (g *gameServer) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := newClient(conn)

		log.Debug().Str("connection", c.id).Str("remote", realIP(r)).Msg("connection established")

		go c.writePump()
		g.readPump(c)
	}
}

func (g *gameServer) readPump(c *client) {
	defer func() {
		g.sessions.OnDisconnect(c)
		c.close()
		log.Debug().Str("connection", c.id).Msg("connection closed")
	}()

	c.conn.SetReadLimit(maxCommandBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var cmd clientCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		g.dispatch(c, cmd)
	}
}

func (g *gameServer) dispatch(c *client, cmd clientCommand) {
	switch cmd.Type {
	case cmdCreateRoom:
		g.handleCreate(c, cmd)
	case cmdJoinRoom:
		g.handleJoin(c, cmd)
	case cmdLeaveRoom:
		g.handleLeave(c, cmd)
	case cmdEditBoard, cmdStartGame, cmdOpenClue, cmdCloseClue, cmdAwardPoints, cmdEndGame:
		g.handleMutation(c, cmd)
	default:
		c.enqueue(newRejectedMessage(cmd.ID, errInvalidCommand("UNKNOWN COMMAND")))
	}
}

// sendJoined subscribes the connection and answers with a snapshot
// captured after the subscription, so the seat never misses the state
// that existed when it joined.
func (g *gameServer) sendJoined(c *client, commandID, code, playerID string) {
	g.sessions.Bind(c, code, playerID)

	snap, err := g.store.Snapshot(code)
	if err != nil {
		// The room vanished between the command and the subscribe.
		c.enqueue(roomClosedMessage{Type: msgRoomClosed, Reason: reasonHostLeft})
		return
	}

	c.enqueue(joinedMessage{
		Type:     msgJoined,
		ID:       commandID,
		PlayerID: playerID,
		Room:     snap,
		Version:  snap.Version,
	})
}

func (g *gameServer) handleCreate(c *client, cmd clientCommand) {
	if code, _ := c.binding(); code != "" {
		c.enqueue(newRejectedMessage(cmd.ID, errInvalidCommand("ALREADY IN A ROOM")))
		return
	}

	snap, hostID, err := g.store.CreateRoom(cmd.Name, cmd.Code, cmd.MaxPlayers)
	if err != nil {
		c.enqueue(newRejectedMessage(cmd.ID, err))
		return
	}

	g.sendJoined(c, cmd.ID, snap.Code, hostID)
}

func (g *gameServer) handleJoin(c *client, cmd clientCommand) {
	if code, playerID := c.binding(); code != "" {
		// A repeated join over an already-bound connection is answered
		// with the current state rather than CALLSIGN TAKEN, so a
		// client retrying after a timeout does not strand itself. It
		// only counts as a retry when it names the same seat.
		if strings.EqualFold(strings.TrimSpace(cmd.Code), code) && g.isSameSeat(cmd, code, playerID) {
			g.sendJoined(c, cmd.ID, code, playerID)
			return
		}
		c.enqueue(newRejectedMessage(cmd.ID, errInvalidCommand("ALREADY IN A ROOM")))
		return
	}

	// A join carrying a player id resumes that seat after a reconnect.
	if cmd.PlayerID != "" {
		snap, err := g.store.ResumePlayer(cmd.Code, cmd.PlayerID)
		if err != nil {
			c.enqueue(newRejectedMessage(cmd.ID, err))
			return
		}
		g.sendJoined(c, cmd.ID, snap.Code, cmd.PlayerID)
		return
	}

	snap, playerID, err := g.store.JoinRoom(cmd.Code, cmd.Name)
	if err != nil {
		c.enqueue(newRejectedMessage(cmd.ID, err))
		return
	}

	g.sendJoined(c, cmd.ID, snap.Code, playerID)
}

// isSameSeat reports whether a repeated join names the seat the
// connection is already bound to, either by player id or by callsign.
func (g *gameServer) isSameSeat(cmd clientCommand, code, playerID string) bool {
	if cmd.PlayerID != "" {
		return cmd.PlayerID == playerID
	}

	snap, err := g.store.Snapshot(code)
	if err != nil {
		return false
	}
	p := snap.player(playerID)
	if p == nil {
		return false
	}

	name, err := normalizeName(cmd.Name)
	return err == nil && strings.EqualFold(name, p.Name)
}

func (g *gameServer) handleLeave(c *client, cmd clientCommand) {
	code, playerID := c.binding()
	if code == "" {
		c.enqueue(newRejectedMessage(cmd.ID, errNotInRoom))
		return
	}

	// Unbind first so the leaver stops receiving snapshots for a room
	// it is no longer part of.
	g.sessions.Unbind(c)

	if _, err := g.store.LeaveRoom(code, playerID); err != nil {
		c.enqueue(newRejectedMessage(cmd.ID, err))
	}
}

func (g *gameServer) handleMutation(c *client, cmd clientCommand) {
	code, playerID := c.binding()
	if code == "" {
		c.enqueue(newRejectedMessage(cmd.ID, errNotInRoom))
		return
	}

	var err error

	switch cmd.Type {
	case cmdEditBoard:
		_, err = g.store.EditBoard(code, playerID, cmd.Board)
	case cmdStartGame:
		_, err = g.store.StartGame(code, playerID)
	case cmdOpenClue:
		_, err = g.store.OpenClue(code, playerID, cmd.ClueID)
	case cmdCloseClue:
		_, err = g.store.CloseClue(code, playerID)
	case cmdAwardPoints:
		_, err = g.store.AwardPoints(code, playerID, cmd.TargetID, cmd.Delta)
	case cmdEndGame:
		_, err = g.store.EndGame(code, playerID)
	}

	if err != nil {
		c.enqueue(newRejectedMessage(cmd.ID, err))
	}
}

// qrHandler generates a PNG QR code for the room join URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:code/qr; strip trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)

	log.Debug().Str("code", code).Str("size", humanReadableSize(int64(len(png)))).Msg("qr served")
}

// registerTriviaGame sets up routes so that:
//   - $path              → HTML client (landing)
//   - $path/:code        → HTML client for a room
//   - $path/:code/qr     → PNG QR code for the room join URL
//   - /ws                → the websocket all commands flow over
func registerTriviaGame(cfg *Config, path string, mux *httprouter.Router, g *gameServer) {
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))
	mux.GET(cfg.prefix+path+"/:code", getIndexHandler(cfg))
	mux.GET(cfg.prefix+path+"/:code/qr", qrHandler)

	mux.GET(cfg.prefix+"/assets/trivia/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/trivia/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+"/ws", g.serveWS())
}
