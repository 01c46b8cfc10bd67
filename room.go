package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const maxNameLength = 12

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Room is the aggregate the whole service revolves around. Methods on
// it assume the caller already holds the room's entry lock in the
// store; they validate, mutate, and return typed rejections, but never
// partially apply.
type Room struct {
	Code       string               `json:"roomCode"`
	HostName   string               `json:"hostName"`
	Status     Status               `json:"status"`
	MaxPlayers int                  `json:"maxPlayers"`
	Players    []Player             `json:"players"`
	Board      []Category           `json:"board"`
	ClueStates map[string]ClueState `json:"clueStates"`
	ActiveClue string               `json:"activeClue,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	Version    uint64               `json:"version"`
}

// normalizeName trims and truncates a display name to the 12 characters
// the board UI can render.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errInvalidCommand("CALLSIGN REQUIRED")
	}
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name, nil
}

func newRoom(code, hostName string, maxPlayers int, now time.Time) (*Room, string) {
	board := defaultBoard()

	host := Player{
		ID:        uuid.NewString(),
		Name:      hostName,
		IsHost:    true,
		Connected: true,
	}

	room := &Room{
		Code:       code,
		HostName:   hostName,
		Status:     StatusWaiting,
		MaxPlayers: maxPlayers,
		Players:    []Player{host},
		Board:      board,
		ClueStates: freshClueStates(board),
		CreatedAt:  now,
		Version:    1,
	}

	return room, host.ID
}

func freshClueStates(board []Category) map[string]ClueState {
	states := make(map[string]ClueState)
	for _, category := range board {
		for _, clue := range category.Clues {
			states[clue.ID] = ClueUnopened
		}
	}
	return states
}

func (r *Room) player(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) playerByName(name string) *Player {
	for i := range r.Players {
		if strings.EqualFold(r.Players[i].Name, name) {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) host() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) connectedCount() int {
	count := 0
	for i := range r.Players {
		if r.Players[i].Connected {
			count++
		}
	}
	return count
}

func (r *Room) requireMember(playerID string) (*Player, error) {
	p := r.player(playerID)
	if p == nil {
		return nil, errNotInRoom
	}
	return p, nil
}

// requireHost re-derives authority from the live roster rather than
// trusting anything the client echoed back.
func (r *Room) requireHost(playerID string) (*Player, error) {
	p, err := r.requireMember(playerID)
	if err != nil {
		return nil, err
	}
	if !p.IsHost {
		return nil, errNotHost
	}
	return p, nil
}

func (r *Room) addPlayer(name string) (*Player, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if len(r.Players) >= r.MaxPlayers {
		return nil, errRoomFull
	}
	if r.playerByName(name) != nil {
		return nil, errNameTaken
	}

	r.Players = append(r.Players, Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
	})

	return &r.Players[len(r.Players)-1], nil
}

func (r *Room) removePlayer(playerID string) bool {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) setConnected(playerID string, connected bool) (*Player, error) {
	p, err := r.requireMember(playerID)
	if err != nil {
		return nil, err
	}
	p.Connected = connected
	return p, nil
}

func (r *Room) editBoard(requesterID string, board []Category) error {
	if _, err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.Status != StatusWaiting {
		return errInvalidStatus("BOARD IS LOCKED DURING PLAY")
	}
	if err := validateBoard(board); err != nil {
		return err
	}

	r.Board = cloneBoard(board)
	r.ClueStates = freshClueStates(r.Board)
	r.ActiveClue = ""

	return nil
}

func (r *Room) start(requesterID string) error {
	if _, err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.Status != StatusWaiting {
		return errInvalidStatus("GAME ALREADY STARTED")
	}
	if len(r.Players) < 1 {
		return errInvalidStatus("NO PLAYERS IN ROOM")
	}

	r.Status = StatusPlaying

	return nil
}

// openClue reveals a clue. Any member may open one; the board itself is
// the arbiter of whether a clue is still available.
func (r *Room) openClue(requesterID, clueID string) error {
	if _, err := r.requireMember(requesterID); err != nil {
		return err
	}
	if r.Status != StatusPlaying {
		return errInvalidStatus("GAME IS NOT IN PROGRESS")
	}
	if findClue(r.Board, clueID) == nil {
		return errInvalidCommand("CLUE NOT FOUND")
	}
	if r.ClueStates[clueID] != ClueUnopened {
		return errClueAlreadyOpen
	}
	if r.ActiveClue != "" {
		return errAnotherClueActive
	}

	r.ClueStates[clueID] = ClueRevealed
	r.ActiveClue = clueID

	return nil
}

func (r *Room) closeClue(requesterID string) error {
	if _, err := r.requireMember(requesterID); err != nil {
		return err
	}
	if r.Status != StatusPlaying {
		return errInvalidStatus("GAME IS NOT IN PROGRESS")
	}
	if r.ActiveClue == "" {
		return errNoActiveClue
	}

	r.ClueStates[r.ActiveClue] = ClueAnswered
	r.ActiveClue = ""

	return nil
}

// awardPoints applies a signed score delta. There is deliberately no
// bound and no correctness arbitration; the host decides.
func (r *Room) awardPoints(requesterID, targetID string, delta int) error {
	if _, err := r.requireHost(requesterID); err != nil {
		return err
	}

	target := r.player(targetID)
	if target == nil {
		return errInvalidCommand("PLAYER NOT FOUND")
	}

	target.Score += delta

	return nil
}

func (r *Room) end(requesterID string) error {
	if _, err := r.requireHost(requesterID); err != nil {
		return err
	}
	if r.Status != StatusPlaying {
		return errInvalidStatus("GAME IS NOT IN PROGRESS")
	}

	r.Status = StatusFinished
	r.ActiveClue = ""

	return nil
}

// clone deep-copies the room so snapshots stay consistent after the
// entry lock is released.
func (r *Room) clone() *Room {
	out := *r
	out.Players = append([]Player(nil), r.Players...)
	out.Board = cloneBoard(r.Board)
	out.ClueStates = make(map[string]ClueState, len(r.ClueStates))
	for id, state := range r.ClueStates {
		out.ClueStates[id] = state
	}
	return &out
}
