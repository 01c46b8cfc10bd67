package main

// Everything on the wire is a JSON text frame. Clients send a single
// command shape with a type discriminator; the optional id is echoed in
// the direct response so an issuer can tell its own rejection apart
// from someone else's mutation.

const (
	cmdCreateRoom  = "create_room"
	cmdJoinRoom    = "join_room"
	cmdLeaveRoom   = "leave_room"
	cmdEditBoard   = "edit_board"
	cmdStartGame   = "start_game"
	cmdOpenClue    = "open_clue"
	cmdCloseClue   = "close_clue"
	cmdAwardPoints = "award_points"
	cmdEndGame     = "end_game"
)

const (
	msgSnapshot   = "snapshot"
	msgJoined     = "joined"
	msgRoomClosed = "room_closed"
	msgRejected   = "rejected"
)

type clientCommand struct {
	ID         string     `json:"id,omitempty"`         // client-chosen correlation id
	Type       string     `json:"type"`                 // one of the cmd* constants
	Name       string     `json:"name,omitempty"`       // create_room / join_room
	Code       string     `json:"code,omitempty"`       // create_room / join_room
	MaxPlayers int        `json:"maxPlayers,omitempty"` // create_room
	PlayerID   string     `json:"playerId,omitempty"`   // join_room (reconnect)
	Board      []Category `json:"board,omitempty"`      // edit_board
	ClueID     string     `json:"clueId,omitempty"`     // open_clue
	TargetID   string     `json:"targetId,omitempty"`   // award_points
	Delta      int        `json:"delta,omitempty"`      // award_points
}

// snapshotMessage carries the full room state after every accepted
// mutation. Clients must discard any snapshot whose version is not
// greater than the last one they applied.
type snapshotMessage struct {
	Type    string `json:"type"`
	Room    *Room  `json:"room"`
	Version uint64 `json:"version"`
}

// joinedMessage is the direct response to an accepted create_room or
// join_room, telling the issuer its player id.
type joinedMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	PlayerID string `json:"playerId"`
	Room     *Room  `json:"room"`
	Version  uint64 `json:"version"`
}

// roomClosedMessage is terminal; subscribers should exit the room.
type roomClosedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type rejectedMessage struct {
	Type    string    `json:"type"`
	ID      string    `json:"id,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func newSnapshotMessage(snap *Room) snapshotMessage {
	return snapshotMessage{Type: msgSnapshot, Room: snap, Version: snap.Version}
}

func newRejectedMessage(commandID string, err error) rejectedMessage {
	ge := asGameError(err)
	return rejectedMessage{Type: msgRejected, ID: commandID, Kind: ge.Kind, Message: ge.Message}
}
