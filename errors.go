/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// ErrorKind is the machine-readable half of a command rejection; the
// Message half is the terse uppercase text shown to the player.
type ErrorKind string

const (
	KindCodeInUse         ErrorKind = "code_in_use"
	KindCodeExhausted     ErrorKind = "code_exhausted"
	KindRoomNotFound      ErrorKind = "room_not_found"
	KindRoomFull          ErrorKind = "room_full"
	KindNameTaken         ErrorKind = "name_taken"
	KindNotHost           ErrorKind = "not_host"
	KindNotInRoom         ErrorKind = "not_in_room"
	KindInvalidStatus     ErrorKind = "invalid_status"
	KindClueAlreadyOpen   ErrorKind = "clue_already_open"
	KindAnotherClueActive ErrorKind = "another_clue_active"
	KindNoActiveClue      ErrorKind = "no_active_clue"
	KindInvalidCommand    ErrorKind = "invalid_command"
	KindServerFull        ErrorKind = "server_full"
	KindInternal          ErrorKind = "internal"
)

type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func gameErr(kind ErrorKind, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

var (
	errCodeInUse         = gameErr(KindCodeInUse, "ROOM CODE ALREADY IN USE")
	errCodeExhausted     = gameErr(KindCodeExhausted, "NO ROOM CODES AVAILABLE")
	errRoomNotFound      = gameErr(KindRoomNotFound, "ROOM NOT FOUND")
	errRoomFull          = gameErr(KindRoomFull, "ROOM IS FULL")
	errNameTaken         = gameErr(KindNameTaken, "CALLSIGN TAKEN")
	errNotHost           = gameErr(KindNotHost, "HOST ONLY")
	errNotInRoom         = gameErr(KindNotInRoom, "NOT IN THIS ROOM")
	errClueAlreadyOpen   = gameErr(KindClueAlreadyOpen, "CLUE ALREADY PLAYED")
	errAnotherClueActive = gameErr(KindAnotherClueActive, "ANOTHER CLUE IS ACTIVE")
	errNoActiveClue      = gameErr(KindNoActiveClue, "NO ACTIVE CLUE")
	errServerFull        = gameErr(KindServerFull, "SERVER IS FULL")
)

func errInvalidStatus(message string) *GameError {
	return gameErr(KindInvalidStatus, message)
}

func errInvalidCommand(message string) *GameError {
	return gameErr(KindInvalidCommand, message)
}

// asGameError maps any error onto a rejection, hiding internal failures
// behind a generic fallback message.
func asGameError(err error) *GameError {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge
	}
	return gameErr(KindInternal, "CONNECTION FAILED")
}
