package domain

import "errors"

var (
	ErrNotFound           = errors.New("session not found")
	ErrRoomFull           = errors.New("session is full")
	ErrRoomEnded          = errors.New("session has ended")
	ErrNotConnected       = errors.New("participant not connected")
	ErrResourceExhausted  = errors.New("session code space exhausted")
	ErrUnknownParticipant = errors.New("participant not found")

	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)
